package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/betanery/easy-doc-signer-sub000/internal/container"
	"github.com/betanery/easy-doc-signer-sub000/internal/handlers"
	"github.com/betanery/easy-doc-signer-sub000/internal/repositories"
	"github.com/betanery/easy-doc-signer-sub000/internal/services"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/admin-token/main.go <profile-id>")
		fmt.Println("Example: go run cmd/admin-token/main.go 6f1c0e52-4a7d-4b8e-9d3a-2c5f8e1b7a90")
		os.Exit(1)
	}

	profileID := os.Args[1]
	_ = godotenv.Load()

	app := fx.New(
		container.Module,
		fx.NopLogger,
		fx.Invoke(func(
			authService services.AuthenticationService,
			profileRepo repositories.ProfileRepository,
		) {
			ctx := context.Background()

			profile, err := profileRepo.GetByID(ctx, profileID)
			if err != nil {
				log.Fatalf("Failed to find profile '%s': %v", profileID, err)
			}
			if profile.TenantID == nil {
				log.Printf("Warning: profile '%s' is not attached to a tenant; document actions will be refused", profileID)
			}

			token, err := authService.GenerateToken(ctx, profile)
			if err != nil {
				log.Fatalf("Failed to generate JWT token: %v", err)
			}

			fmt.Printf("JWT Token for profile '%s':\n", profileID)
			fmt.Printf("%s\n", token)
			fmt.Printf("\nUse this token in the Authorization header:\n")
			fmt.Printf("Authorization: Bearer %s\n", token)
			fmt.Printf("\nExample curl command:\n")
			fmt.Printf("curl -X POST -H \"Authorization: Bearer %s\" -d '{\"action\":\"list\"}' http://localhost:8080%s\n", token, handlers.DocumentActionPath)
		}),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	app.Stop(context.Background())
}
