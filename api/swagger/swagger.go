package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Rota API",
        "description": "Workforce shift scheduling: employee roster, weekly shift templates, schedule generation and exports",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Authentication", "description": "Login and token lifecycle"},
        {"name": "Employees", "description": "Roster management"},
        {"name": "Settings", "description": "Weekly planning configuration"},
        {"name": "Schedules", "description": "Generation, manual edits and CSV export"},
        {"name": "Reports", "description": "Asynchronous report rendering"},
        {"name": "System", "description": "Observability"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unknown or expired refresh token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke refresh token",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Change own password",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangePasswordRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Current password incorrect"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user info",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/employees": {
            "get": {
                "tags": ["Employees"],
                "summary": "List employees",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Employees"],
                "summary": "Create employee",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EmployeeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/employees/{id}": {
            "get": {
                "tags": ["Employees"],
                "summary": "Get employee",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"}
                }
            },
            "put": {
                "tags": ["Employees"],
                "summary": "Update employee",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EmployeeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"}
                }
            },
            "delete": {
                "tags": ["Employees"],
                "summary": "Delete employee",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/settings": {
            "get": {
                "tags": ["Settings"],
                "summary": "Get schedule settings",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Settings"],
                "summary": "Replace schedule settings",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleSettings"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed"}
                }
            }
        },
        "/schedules/generate": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Generate the weekly schedule",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid anchor"}
                }
            }
        },
        "/schedules/current": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Get the current schedule",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No schedule generated yet"}
                }
            }
        },
        "/schedules/shifts/{id}/assignments": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Assign an employee to a shift",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddAssignmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Shift or employee not found"},
                    "409": {"description": "Duplicate assignment or shift full"}
                }
            }
        },
        "/schedules/shifts/{id}/assignments/{employeeId}": {
            "delete": {
                "tags": ["Schedules"],
                "summary": "Remove an employee from a shift",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "employeeId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Shift not found"}
                }
            }
        },
        "/schedules/export.csv": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Download the current schedule as CSV",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "delimiter", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "CSV payload"},
                    "404": {"description": "No schedule generated yet"}
                }
            }
        },
        "/reports": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue a report render",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Get report job status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not your job"},
                    "404": {"description": "Unknown or expired job"}
                }
            }
        },
        "/system/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "In-process metrics snapshot",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "RefreshTokenRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {"type": "string"}
            },
            "required": ["refresh_token"]
        },
        "ChangePasswordRequest": {
            "type": "object",
            "properties": {
                "old_password": {"type": "string"},
                "new_password": {"type": "string", "minLength": 8}
            },
            "required": ["old_password", "new_password"]
        },
        "TimeRange": {
            "type": "object",
            "properties": {
                "start_minute": {"type": "integer"},
                "end_minute": {"type": "integer"}
            }
        },
        "EmployeeRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "max_hours_per_week": {"type": "integer"},
                "roles": {"type": "array", "items": {"type": "string"}},
                "availability": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "array",
                        "items": {"$ref": "#/definitions/TimeRange"}
                    }
                }
            },
            "required": ["name"]
        },
        "Employee": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "max_hours_per_week": {"type": "integer"},
                "roles": {"type": "array", "items": {"type": "string"}},
                "availability": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "array",
                        "items": {"$ref": "#/definitions/TimeRange"}
                    }
                },
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "RoleFilter": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "enum": ["any", "requires"]},
                "role": {"type": "string"}
            }
        },
        "ShiftTemplate": {
            "type": "object",
            "properties": {
                "start_hour": {"type": "integer"},
                "end_hour": {"type": "integer"},
                "required_staff": {"type": "integer"},
                "role": {"$ref": "#/definitions/RoleFilter"}
            }
        },
        "ScheduleSettings": {
            "type": "object",
            "properties": {
                "week_start": {"type": "string"},
                "min_rest_hours": {"type": "integer"},
                "timezone": {"type": "string"},
                "templates": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "array",
                        "items": {"$ref": "#/definitions/ShiftTemplate"}
                    }
                }
            }
        },
        "GenerateScheduleRequest": {
            "type": "object",
            "properties": {
                "week_anchor": {"type": "string"}
            },
            "required": ["week_anchor"]
        },
        "AddAssignmentRequest": {
            "type": "object",
            "properties": {
                "employee_id": {"type": "string"}
            },
            "required": ["employee_id"]
        },
        "Assignment": {
            "type": "object",
            "properties": {
                "employee_id": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "Shift": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "start": {"type": "string"},
                "end": {"type": "string"},
                "role": {"$ref": "#/definitions/RoleFilter"},
                "required_staff": {"type": "integer"},
                "assignments": {"type": "array", "items": {"$ref": "#/definitions/Assignment"}},
                "coverage": {"type": "string", "enum": ["empty", "partial", "full", "over"]}
            }
        },
        "ScheduleSummary": {
            "type": "object",
            "properties": {
                "total_shifts": {"type": "integer"},
                "full_shifts": {"type": "integer"},
                "partial_shifts": {"type": "integer"},
                "empty_shifts": {"type": "integer"},
                "over_shifts": {"type": "integer"},
                "open_slots": {"type": "integer"}
            }
        },
        "Schedule": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "week_start": {"type": "string"},
                "shifts": {"type": "array", "items": {"$ref": "#/definitions/Shift"}},
                "summary": {"$ref": "#/definitions/ScheduleSummary"}
            }
        },
        "ReportRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["schedule", "roster"]},
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "delimiter": {"type": "string"}
            },
            "required": ["type", "format"]
        },
        "ReportJob": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string", "enum": ["QUEUED", "PROCESSING", "FINISHED", "FAILED"]},
                "progress": {"type": "integer"},
                "result_url": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
