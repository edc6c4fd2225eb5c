package handler

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/pkg/logger"
)

// actorFromContext returns the acting user id forwarded by the gateway.
func actorFromContext(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(logger.ActorHeader))
}

// bindOptionalJSON binds a JSON body when one was sent; an empty body keeps the zero value.
func bindOptionalJSON(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
