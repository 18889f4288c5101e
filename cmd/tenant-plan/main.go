package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/betanery/easy-doc-signer-sub000/internal/container"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
	"github.com/betanery/easy-doc-signer-sub000/internal/services"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run cmd/tenant-plan/main.go <tenant-id> <plan>")
		fmt.Println("Example: go run cmd/tenant-plan/main.go 6f1c0e52-4a7d-4b8e-9d3a-2c5f8e1b7a90 business")
		fmt.Print("Plans:")
		for _, plan := range models.AllPlans() {
			fmt.Printf(" %s", plan.Tier)
		}
		fmt.Println()
		os.Exit(1)
	}

	tenantID, plan := os.Args[1], os.Args[2]
	_ = godotenv.Load()

	app := fx.New(
		container.Module,
		fx.NopLogger,
		fx.Invoke(func(
			tenantService services.TenantService,
			usageService services.UsageService,
		) {
			ctx := context.Background()

			tenant, err := tenantService.ChangePlan(ctx, tenantID, plan)
			if err != nil {
				log.Fatalf("Failed to change plan of tenant '%s': %v", tenantID, err)
			}

			fmt.Printf("Tenant '%s' (%s) is now on plan '%s'\n", tenant.ID, tenant.Name, tenant.Plan)

			usage, err := usageService.GetDocumentUsage(ctx, tenant)
			if err != nil {
				log.Printf("Warning: failed to read document usage: %v", err)
				return
			}
			if usage.Unlimited {
				fmt.Printf("Documents: %d used, unlimited\n", usage.Used)
				return
			}
			fmt.Printf("Documents: %d of %d used (%s)\n", usage.Used, usage.Limit, usage.CapKind)
		}),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	app.Stop(context.Background())
}
