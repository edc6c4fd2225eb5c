package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timetable API",
        "description": "University timetable generation, optimisation and validation",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Scheduler", "description": "Schedule generation and local-search optimisation"},
        {"name": "Schedules", "description": "Schedule reads, audit, publication and cloning"},
        {"name": "Lessons", "description": "Manual lesson placement"},
        {"name": "Ops", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Ops"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ready": {
            "get": {
                "tags": ["Ops"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Ops"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {"200": {"description": "Prometheus exposition"}}
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Ops"],
                "summary": "Metrics snapshot",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/schedules/generate": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Generate a schedule for a semester",
                "parameters": [
                    {"name": "X-Actor-ID", "in": "header", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateScheduleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/GenerationResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Precondition Failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "423": {"description": "Locked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/schedules/{id}/optimize": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Optimise an existing schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/OptimizeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/OptimizationResult"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "423": {"description": "Locked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List schedules",
                "parameters": [
                    {"name": "semesterId", "in": "query", "required": false, "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/schedules/{id}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Get schedule with lessons",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/schedules/{id}/stats": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Schedule statistics",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/schedules/{id}/history": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Optimisation history",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/schedules/{id}/evaluate": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Penalty evaluation",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/PenaltyReport"}}}
            }
        },
        "/api/v1/schedules/{id}/conflicts": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List conflicts",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/schedules/{id}/validate": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Validate schedule",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ValidationReport"}}}
            }
        },
        "/api/v1/schedules/{id}/publish": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Publish a valid schedule",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Schedule has validation errors", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/schedules/{id}/clone": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Clone a schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "X-Actor-ID", "in": "header", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/CloneScheduleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Actor is not a schedule manager", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/schedules/lessons": {
            "post": {
                "tags": ["Lessons"],
                "summary": "Create lesson",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateLessonRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid lesson", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Placement conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/schedules/lessons/{id}": {
            "put": {
                "tags": ["Lessons"],
                "summary": "Update lesson",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateLessonRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Placement conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Lessons"],
                "summary": "Delete lesson",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "GenerateScheduleRequest": {
            "type": "object",
            "required": ["semesterId"],
            "properties": {
                "semesterId": {"type": "string"},
                "maxIterations": {"type": "integer", "minimum": 1},
                "targetPenalty": {"type": "number", "minimum": 0},
                "saveProgress": {"type": "boolean"}
            }
        },
        "GenerationResult": {
            "type": "object",
            "properties": {
                "scheduleId": {"type": "string"},
                "placedCount": {"type": "integer"},
                "totalTasks": {"type": "integer"},
                "successRate": {"type": "number"},
                "targetPenalty": {"type": "number"},
                "targetReached": {"type": "boolean"},
                "evaluation": {"$ref": "#/definitions/PenaltyReport"},
                "unplaced": {"type": "array", "items": {"type": "object"}},
                "phase": {"type": "string"}
            }
        },
        "OptimizeRequest": {
            "type": "object",
            "properties": {
                "maxIterations": {"type": "integer", "minimum": 1},
                "algorithm": {"type": "string", "enum": ["LOCAL_SEARCH", "SIMULATED_ANNEALING"]}
            }
        },
        "OptimizationResult": {
            "type": "object",
            "properties": {
                "scheduleId": {"type": "string"},
                "algorithm": {"type": "string"},
                "before": {"type": "number"},
                "after": {"type": "number"},
                "improvement": {"type": "number"},
                "iterations": {"type": "integer"},
                "successful": {"type": "integer"},
                "durationMs": {"type": "integer"}
            }
        },
        "PenaltyReport": {
            "type": "object",
            "properties": {
                "total_penalty": {"type": "number"},
                "breakdown": {"type": "object"},
                "violations": {"type": "object"}
            }
        },
        "ValidationReport": {
            "type": "object",
            "properties": {
                "isValid": {"type": "boolean"},
                "errors": {"type": "array", "items": {"$ref": "#/definitions/ValidationIssue"}},
                "warnings": {"type": "array", "items": {"$ref": "#/definitions/ValidationIssue"}},
                "stats": {"type": "object"}
            }
        },
        "ValidationIssue": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "object"}
            }
        },
        "CloneScheduleRequest": {
            "type": "object",
            "properties": {
                "semesterId": {"type": "string"},
                "name": {"type": "string", "maxLength": 200}
            }
        },
        "CreateLessonRequest": {
            "type": "object",
            "required": ["scheduleId"],
            "properties": {
                "scheduleId": {"type": "string"},
                "teachingLoadId": {"type": "string"},
                "kind": {"type": "string", "enum": ["LECTURE", "PRACTICE", "LAB", "PHYSICAL_EDUCATION"]},
                "dayOfWeek": {"type": "string", "enum": ["MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY"]},
                "timeSlotId": {"type": "string"},
                "classroomId": {"type": "string"},
                "subgroupNumber": {"type": "integer"},
                "isDouble": {"type": "boolean"}
            }
        },
        "UpdateLessonRequest": {
            "type": "object",
            "properties": {
                "kind": {"type": "string"},
                "dayOfWeek": {"type": "string"},
                "timeSlotId": {"type": "string"},
                "classroomId": {"type": "string"},
                "subgroupNumber": {"type": "integer"},
                "isDouble": {"type": "boolean"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
