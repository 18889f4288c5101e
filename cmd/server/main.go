package main

import (
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/betanery/easy-doc-signer-sub000/internal/container"
)

func main() {
	// A missing .env is fine; the environment may already be populated
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	app := fx.New(container.Options())

	app.Run()
}
