// Package docs registers the medmodeld OpenAPI document with swag.
// Regenerate with `swag init -g cmd/medmodeld/docs.go -o docs` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {"name": "MIT", "url": "https://opensource.org/licenses/MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/readyz": {
            "get": {
                "summary": "Runtime readiness",
                "responses": {
                    "200": {"description": "ready", "schema": {"type": "string"}},
                    "503": {"description": "runtime unavailable", "schema": {"type": "string"}}
                }
            }
        },
        "/local/status": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "summary": "Runtime and host status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Envelope"}}}
            }
        },
        "/local/models": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "summary": "Catalog with installed flags",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Envelope"}}}
            }
        },
        "/local/installed": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "summary": "Resynchronise and list installed models",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Envelope"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.Envelope"}}
                }
            }
        },
        "/local/models/{name}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "summary": "Installed model details",
                "parameters": [{"type": "string", "description": "model name", "name": "name", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.Envelope"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "summary": "Remove an installed model",
                "parameters": [{"type": "string", "description": "model name", "name": "name", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.Envelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.Envelope"}}
                }
            }
        },
        "/local/install": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Install a cataloged model",
                "parameters": [
                    {"description": "model to install", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.InstallRequest"}},
                    {"type": "boolean", "description": "stream NDJSON progress", "name": "stream", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.Envelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.Envelope"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.Envelope"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.Envelope"}}
                }
            }
        },
        "/local/start": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "summary": "Start the local runtime when it is not answering",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Envelope"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.Envelope"}}
                }
            }
        },
        "/local/process": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Run a text or vision prompt",
                "parameters": [{"description": "prompt", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.ProcessRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.Envelope"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.Envelope"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.Envelope"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/types.Envelope"}}
                }
            }
        },
        "/providers/status": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "summary": "Provider connectivity",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Envelope"}}}
            }
        }
    },
    "definitions": {
        "types.Envelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": true},
                "data": {},
                "error": {"type": "string", "example": "model not installed: mistral-medical"},
                "code": {"type": "string", "example": "model_not_installed"}
            }
        },
        "types.InstallRequest": {
            "type": "object",
            "properties": {"modelName": {"type": "string", "example": "mistral-medical"}}
        },
        "types.ProcessOptions": {
            "type": "object",
            "properties": {
                "temperature": {"type": "number", "example": 0.3},
                "top_p": {"type": "number", "example": 0.9},
                "top_k": {"type": "integer", "example": 40},
                "repeat_penalty": {"type": "number", "example": 1.1},
                "max_tokens": {"type": "integer", "example": 512}
            }
        },
        "types.ProcessRequest": {
            "type": "object",
            "properties": {
                "modelName": {"type": "string", "example": "mistral-medical"},
                "prompt": {"type": "string", "example": "Summarize: BP 150/95, HR 88"},
                "type": {"type": "string", "example": "text"},
                "imageData": {"type": "string"},
                "options": {"$ref": "#/definitions/types.ProcessOptions"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "medmodeld API",
	Description:      "Local healthcare model management and inference.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
