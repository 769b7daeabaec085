package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "School Ops API",
        "description": "Multi-tenant school operations: attendance, payroll adjustments, session dispatch, subscriptions",
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
        {"name": "auth", "description": "Authentication and token rotation"},
        {"name": "payroll", "description": "Deduction waivers, adjustments and policy"},
        {"name": "sessions", "description": "Session link dispatch"},
        {"name": "subscriptions", "description": "Payment subscription linking"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Authenticate an account",
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
                "tags": ["auth"],
                "summary": "Rotate a refresh token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["auth"],
                "summary": "Revoke the caller's refresh tokens",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/payroll/adjustments": {
            "post": {
                "tags": ["payroll"],
                "summary": "Apply a payroll adjustment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdjustmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"}
                }
            }
        },
        "/payroll/waivers": {
            "get": {
                "tags": ["payroll"],
                "summary": "List deduction waivers",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payroll/waivers/export": {
            "get": {
                "tags": ["payroll"],
                "summary": "Export waived deductions (CSV or PDF)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "from", "in": "query", "required": true, "type": "string"},
                    {"name": "to", "in": "query", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/payroll/policy": {
            "get": {
                "tags": ["payroll"],
                "summary": "Fetch the resolved deduction policy",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["payroll"],
                "summary": "Update package rates, lateness tiers or settings",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdatePolicyRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/links": {
            "post": {
                "tags": ["sessions"],
                "summary": "Send a session join link to a student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DispatchRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "get": {
                "tags": ["sessions"],
                "summary": "List session links",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "studentId", "in": "query", "type": "integer"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/subscriptions/finalize": {
            "post": {
                "tags": ["subscriptions"],
                "summary": "Link a completed checkout's subscription to a student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FinalizeSubscriptionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Subscription already linked elsewhere"}
                }
            }
        },
        "/students/{studentId}/subscriptions": {
            "get": {
                "tags": ["subscriptions"],
                "summary": "List a student's subscription links",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "RefreshTokenRequest": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {
                "refresh_token": {"type": "string"}
            }
        },
        "AdjustmentRequest": {
            "type": "object",
            "required": ["adjustmentType", "dateRange", "teacherIds", "reason"],
            "properties": {
                "adjustmentType": {"type": "string", "enum": ["waive_absence", "waive_lateness"]},
                "dateRange": {
                    "type": "object",
                    "properties": {
                        "startDate": {"type": "string"},
                        "endDate": {"type": "string"}
                    }
                },
                "teacherIds": {"type": "array", "items": {"type": "string"}},
                "timeSlots": {"type": "array", "items": {"type": "string"}},
                "studentIds": {"type": "array", "items": {"type": "string"}},
                "reason": {"type": "string"}
            }
        },
        "UpdatePolicyRequest": {
            "type": "object",
            "properties": {
                "rates": {"type": "array", "items": {"type": "object"}},
                "tiers": {"type": "array", "items": {"type": "object"}},
                "include_sundays": {"type": "boolean"},
                "timezone": {"type": "string"}
            }
        },
        "DispatchRequest": {
            "type": "object",
            "required": ["studentId", "joinUrl"],
            "properties": {
                "studentId": {"type": "integer"},
                "joinUrl": {"type": "string"},
                "topic": {"type": "string"}
            }
        },
        "FinalizeSubscriptionRequest": {
            "type": "object",
            "required": ["studentId"],
            "properties": {
                "sessionId": {"type": "string"},
                "studentId": {"type": "integer"},
                "packageId": {"type": "string"}
            }
        },
        "FinalizeResult": {
            "type": "object",
            "properties": {
                "verified": {"type": "boolean"},
                "finalized": {"type": "boolean"},
                "subscription": {"type": "object"}
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
