package main

// General API documentation for swaggo. Run `swag init -g cmd/chesscommd/docs.go -o docs` to regenerate docs.
//
// @title           chesscomm API
// @version         1.0
// @description     HTTP API for chess move commentary and board image segmentation.
//
// @contact.name   chesscomm maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
