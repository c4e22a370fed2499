package main

import (
	"log"

	_ "clinic-console/docs"
	"clinic-console/internal/app"
)

// @title Clinic Console API
// @version 1.0
// @description Call-center console for clinics: receives CTI call events, matches callers to patients and streams events to staff consoles.

// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
