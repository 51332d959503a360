package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "School Timetable API",
        "description": "Classroom timetables with teacher and room conflict detection",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Catalog", "description": "Time slots, classrooms, subjects, teachers and rooms"},
        {"name": "Timetable", "description": "Classroom grid editing"},
        {"name": "Conflicts", "description": "Teacher and room double-booking checks"},
        {"name": "Generator", "description": "Requirement-driven grid filling"}
    ],
    "paths": {
        "/time-slots": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List active time slots in day order",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/time-slots/{id}/duration": {
            "get": {
                "tags": ["Catalog"],
                "summary": "Length of a time slot in minutes",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown time slot", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/class-rooms": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List active classrooms",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/subjects": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List active subjects with qualified teachers",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/teachers": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List active teachers",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/teachers/{id}/deactivate": {
            "post": {
                "tags": ["Catalog"],
                "summary": "Deactivate a teacher with no remaining bookings",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Deactivated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Teacher still booked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rooms": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List active rooms",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/rooms/{id}/deactivate": {
            "post": {
                "tags": ["Catalog"],
                "summary": "Deactivate a room with no remaining bookings",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Deactivated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Room still booked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/class-rooms/{id}/timetable": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get a classroom timetable",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown classroom", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/class-rooms/{id}/timetable/{weekday}/{slotId}": {
            "put": {
                "tags": ["Timetable"],
                "summary": "Create or replace a timetable cell",
                "description": "Conflicts are reported in the response and do not block the save.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "weekday", "in": "path", "required": true, "type": "integer"},
                    {"name": "slotId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PlaceEntryRequest"}}
                ],
                "responses": {
                    "200": {"description": "Saved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown classroom or time slot", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Cell changed while saving", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Timetable"],
                "summary": "Remove a timetable cell",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "weekday", "in": "path", "required": true, "type": "integer"},
                    {"name": "slotId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Removed"},
                    "404": {"description": "Cell is empty", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/class-rooms/{id}/timetable/clear": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Remove every cell of a classroom",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ClearTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "Cleared", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Confirmation missing", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/class-rooms/{id}/timetable/generate": {
            "post": {
                "tags": ["Generator"],
                "summary": "Fill a classroom's open cells from its grade requirements",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Generation result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Generation already running", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/class-rooms/{id}/timetable/conflicts": {
            "get": {
                "tags": ["Conflicts"],
                "summary": "Cached conflict report for a classroom",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/class-rooms/{id}/timetable/conflicts/sweep": {
            "get": {
                "tags": ["Conflicts"],
                "summary": "Conflicts for every cell of a classroom",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/timetable/conflicts/check": {
            "post": {
                "tags": ["Conflicts"],
                "summary": "Check a candidate placement without saving it",
                "parameters": [
                    {"name": "X-Check-Session", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CheckConflictsRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "PlaceEntryRequest": {
            "type": "object",
            "properties": {
                "subject_id": {"type": "string"},
                "teacher_id": {"type": "string"},
                "room_id": {"type": "string"},
                "slot_type": {"type": "string", "enum": ["LESSON", "ACTIVITY", "BREAK", "LUNCH", "ASSEMBLY", "FREE"]},
                "notes": {"type": "string"}
            }
        },
        "ClearTimetableRequest": {
            "type": "object",
            "properties": {
                "confirm": {"type": "boolean"}
            }
        },
        "CheckConflictsRequest": {
            "type": "object",
            "properties": {
                "class_room_id": {"type": "string"},
                "weekday": {"type": "integer"},
                "time_slot_id": {"type": "string"},
                "teacher_id": {"type": "string"},
                "room_id": {"type": "string"},
                "session_id": {"type": "string"},
                "sequence": {"type": "integer"}
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
