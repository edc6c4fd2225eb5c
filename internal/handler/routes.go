package handler

import "github.com/gin-gonic/gin"

// RegisterScheduleRoutes mounts the timetable endpoints on rg. Static lesson routes
// resolve before the :id routes.
func RegisterScheduleRoutes(rg *gin.RouterGroup, schedules *ScheduleHandler, generator *ScheduleGeneratorHandler) {
	group := rg.Group("/schedules")

	group.POST("/generate", generator.Generate)
	group.POST("/:id/optimize", generator.Optimize)

	group.GET("", schedules.List)
	group.GET("/:id", schedules.Get)
	group.GET("/:id/stats", schedules.Stats)
	group.GET("/:id/history", schedules.History)
	group.GET("/:id/evaluate", schedules.Evaluate)
	group.GET("/:id/conflicts", schedules.Conflicts)
	group.GET("/:id/validate", schedules.Validate)
	group.POST("/:id/publish", schedules.Publish)
	group.POST("/:id/clone", schedules.Clone)

	group.POST("/lessons", schedules.CreateLesson)
	group.PUT("/lessons/:id", schedules.UpdateLesson)
	group.DELETE("/lessons/:id", schedules.DeleteLesson)
}

// RegisterOpsRoutes mounts health, readiness and metrics endpoints.
func RegisterOpsRoutes(r gin.IRouter, metrics *MetricsHandler) {
	r.GET("/health", metrics.Health)
	r.GET("/ready", metrics.Ready)
	r.GET("/metrics", metrics.Prometheus)
	r.GET("/metrics/summary", metrics.Summary)
}
