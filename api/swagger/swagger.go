package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Feedback Sessions API",
        "description": "Collects student feedback per session and freezes compiled statistics on close",
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
        {"name": "Sessions", "description": "Feedback session lifecycle"},
        {"name": "Responses", "description": "Student submissions"},
        {"name": "Stats", "description": "Frozen statistics and exports"},
        {"name": "Metrics", "description": "Operational metrics"}
    ],
    "paths": {
        "/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List feedback sessions",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["ACTIVE", "CLOSED"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Open a feedback session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Get a feedback session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/responses": {
            "post": {
                "tags": ["Responses"],
                "summary": "Submit feedback for a session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitResponseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Stored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Session closed or already submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/close": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Close a session and freeze its statistics",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Closed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already closed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Response store timed out", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/recompile": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Rebuild the statistics of a closed session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Recompiled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Session not closed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/stats": {
            "get": {
                "tags": ["Stats"],
                "summary": "Compiled statistics of a closed session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Session not closed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/stats/export": {
            "get": {
                "tags": ["Stats"],
                "summary": "Download the statistics of a closed session",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Operational metrics snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "QuestionRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "text": {"type": "string"},
                "kind": {"type": "string", "enum": ["rating", "freeText", "choice"]},
                "options": {"type": "array", "items": {"type": "string"}},
                "required": {"type": "boolean"}
            },
            "required": ["id", "text", "kind"]
        },
        "CreateSessionRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "subject": {"type": "string"},
                "cohort": {"type": "string"},
                "closesAt": {"type": "string", "format": "date-time"},
                "questions": {"type": "array", "items": {"$ref": "#/definitions/QuestionRequest"}}
            },
            "required": ["title", "subject", "cohort", "questions"]
        },
        "AnswerRequest": {
            "type": "object",
            "properties": {
                "questionId": {"type": "string"},
                "kind": {"type": "string", "enum": ["rating", "freeText", "choice"]},
                "value": {"description": "integer 1..5 for rating, string otherwise"}
            },
            "required": ["questionId", "kind", "value"]
        },
        "SubmitResponseRequest": {
            "type": "object",
            "properties": {
                "answers": {"type": "array", "items": {"$ref": "#/definitions/AnswerRequest"}}
            },
            "required": ["answers"]
        },
        "CommentEntry": {
            "type": "object",
            "properties": {
                "text": {"type": "string"},
                "avgRating": {"type": "number"},
                "responseId": {"type": "string"}
            }
        },
        "CompiledStats": {
            "type": "object",
            "properties": {
                "totalResponses": {"type": "integer"},
                "avgRating": {"type": "number"},
                "topRating": {"type": "number"},
                "leastRating": {"type": "number"},
                "ratingDistribution": {"type": "object", "additionalProperties": {"type": "integer"}},
                "topComments": {"type": "array", "items": {"$ref": "#/definitions/CommentEntry"}},
                "avgComments": {"type": "array", "items": {"$ref": "#/definitions/CommentEntry"}},
                "leastRatedComments": {"type": "array", "items": {"$ref": "#/definitions/CommentEntry"}},
                "compiledAt": {"type": "string", "format": "date-time"}
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
