package main

// General API documentation for swaggo. Run `swag init -g cmd/medmodeld/docs.go -o docs` to regenerate.
//
// @title           medmodeld API
// @version         1.0
// @description     Local healthcare model management and inference on an Ollama runtime.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
//
// @schemes http
