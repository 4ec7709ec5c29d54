// cmd/main.go
package main

import (
	"smad-api/app"
)

// @title           SMAD API
// @version         1.0
// @description     Authentication and user management API with JWT access tokens and refresh tokens.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT

// @host      localhost:3000
// @BasePath  /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app.Run()
}
