package main

// General API documentation for swaggo. Run `swag init -g cmd/llamagate/docs.go` to generate docs.
//
// @title           llamagate API
// @version         1.0
// @description     HTTP gateway for a single llama.cpp inference engine: request admission, context budgeting, and health probes.
//
// @contact.name   llamagate maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
