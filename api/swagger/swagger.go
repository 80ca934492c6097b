package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "EduPoint Portal API",
        "description": "Schedule, attendance and calendar portal for EduPoint schools",
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
        {"name": "Schedule", "description": "Resolved lesson occurrences with attendance state"},
        {"name": "Attendance", "description": "Attendance records, summaries and exports"},
        {"name": "Calendar", "description": "Visibility-filtered events and announcements"},
        {"name": "Lessons", "description": "Recurring lesson templates"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Backing store unavailable"}
                }
            }
        },
        "/schedule": {
            "get": {
                "tags": ["Schedule"],
                "summary": "Resolved schedule for a date range",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "from", "in": "query", "type": "string", "required": true, "description": "Start date YYYY-MM-DD"},
                    {"name": "to", "in": "query", "type": "string", "required": true, "description": "End date YYYY-MM-DD"},
                    {"name": "studentId", "in": "query", "type": "string", "description": "Student whose attendance to join"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid range"},
                    "403": {"description": "Student outside caller scope"}
                }
            }
        },
        "/schedule/today": {
            "get": {
                "tags": ["Schedule"],
                "summary": "Resolved schedule for today",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "date", "in": "query", "type": "string"},
                    {"name": "studentId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance": {
            "get": {
                "tags": ["Attendance"],
                "summary": "List attendance records",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["present", "absent", "trial", "makeup", "cancelled"]},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Attendance"],
                "summary": "Mark, update or clear an attendance record",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MarkAttendanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "Record created or updated"},
                    "204": {"description": "Record cleared"},
                    "400": {"description": "Invalid payload"},
                    "409": {"description": "Concurrent update lost the race twice"}
                }
            }
        },
        "/attendance/summary": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Attendance summary for one student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string", "required": true},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AttendanceSummary"}}
                }
            }
        },
        "/attendance/export": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Export attendance as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "sheet", "in": "query", "type": "string", "required": true, "enum": ["class", "student"]},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "date", "in": "query", "type": "string"},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Rendered file"}
                }
            }
        },
        "/calendar": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Visible events and announcements in a date range",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "from", "in": "query", "type": "string", "required": true},
                    {"name": "to", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons": {
            "get": {
                "tags": ["Lessons"],
                "summary": "List recurring lesson templates",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "subjectId", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/recurring/{id}/reschedule": {
            "put": {
                "tags": ["Lessons"],
                "summary": "Move a recurring lesson to a new weekly slot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RescheduleLessonRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated template"},
                    "404": {"description": "Unknown template"},
                    "409": {"description": "Teacher already booked in that slot"}
                }
            }
        }
    },
    "definitions": {
        "MarkAttendanceRequest": {
            "type": "object",
            "required": ["student_id", "date"],
            "properties": {
                "student_id": {"type": "string"},
                "date": {"type": "string", "example": "2026-03-02"},
                "lesson_id": {"type": "string"},
                "recurring_lesson_id": {"type": "string"},
                "status": {"type": "string", "enum": ["present", "absent", "trial", "makeup", "cancelled"]},
                "clear": {"type": "boolean"}
            }
        },
        "RescheduleLessonRequest": {
            "type": "object",
            "required": ["start_time", "end_time", "weekdays"],
            "properties": {
                "start_time": {"type": "string", "example": "09:00"},
                "end_time": {"type": "string", "example": "10:30"},
                "weekdays": {"type": "string", "example": "MO,WE,FR"}
            }
        },
        "AttendanceSummary": {
            "type": "object",
            "properties": {
                "present": {"type": "integer"},
                "absent": {"type": "integer"},
                "trial": {"type": "integer"},
                "makeup": {"type": "integer"},
                "cancelled": {"type": "integer"},
                "counted": {"type": "integer"},
                "rate": {"type": "number"}
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
