package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Birthday Greetings API",
        "description": "Colleague birthdays, greeting cards and scheduled email delivery",
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
        {"name": "Authentication", "description": "Login and token lifecycle"},
        {"name": "Employees", "description": "Employee records and self-service profile"},
        {"name": "Birthdays", "description": "Colleague birthday views, calendar and exports"},
        {"name": "Card Templates", "description": "Greeting card layouts"},
        {"name": "Greetings", "description": "Card dispatch and history"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "security": [],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/employees": {
            "get": {
                "tags": ["Employees"],
                "summary": "List employees",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "department_id", "in": "query", "type": "string"},
                    {"name": "position_id", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/employees/birthdays": {
            "get": {
                "tags": ["Birthdays"],
                "summary": "Colleague birthdays sorted by proximity",
                "parameters": [
                    {"name": "lang", "in": "query", "type": "string", "enum": ["en", "ru"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/employees/birthdays/export": {
            "get": {
                "tags": ["Birthdays"],
                "summary": "Export upcoming birthdays",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "days", "in": "query", "type": "integer"},
                    {"name": "lang", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/employees/birthdays/calendar.ics": {
            "get": {
                "tags": ["Birthdays"],
                "summary": "iCalendar feed of next birthdays",
                "produces": ["text/calendar"],
                "responses": {
                    "200": {"description": "Calendar"}
                }
            }
        },
        "/dashboard/birthdays": {
            "get": {
                "tags": ["Birthdays"],
                "summary": "Today's and upcoming birthdays",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/card-templates": {
            "get": {
                "tags": ["Card Templates"],
                "summary": "List card templates",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Card Templates"],
                "summary": "Create card template",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CardTemplateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/greetings/run": {
            "post": {
                "tags": ["Greetings"],
                "summary": "Send today's birthday cards now",
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Run in progress", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/employees/birthday-history": {
            "get": {
                "tags": ["Greetings"],
                "summary": "Greeting history",
                "parameters": [
                    {"name": "employee_id", "in": "query", "type": "string"},
                    {"name": "success", "in": "query", "type": "boolean"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
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
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "CardTemplateRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "background_image_url": {"type": "string"},
                "text_template": {"type": "string", "description": "Must contain {name}"},
                "font_size": {"type": "number"},
                "font_color": {"type": "string", "example": "#1A2B3C"},
                "text_x": {"type": "number"},
                "text_y": {"type": "number"},
                "department_id": {"type": "string"},
                "position_id": {"type": "string"}
            },
            "required": ["name", "text_template", "font_size", "font_color"]
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
