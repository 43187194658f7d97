package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dimitrije/vericheck-api/internal/config"
	"github.com/dimitrije/vericheck-api/internal/database"
	"github.com/dimitrije/vericheck-api/internal/events"
	"github.com/dimitrije/vericheck-api/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.SuperAdmin.Validate(); err != nil {
		log.Fatalf("Invalid super admin seed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.AMQP.URL != "" {
		if p, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange); err == nil {
			publisher = p
		} else {
			log.Printf("AMQP unavailable, bootstrap event will not be published: %v", err)
		}
	}
	defer publisher.Close()

	authService := services.NewAuthService(
		services.NewUserService(db),
		services.NewPasswordHasher(cfg.BcryptCost),
		services.NewJWTService(cfg.JWTSecret, cfg.JWTExpiry),
		publisher,
		nil,
		nil,
	)
	defer authService.Close()

	seed := cfg.SuperAdmin
	created, err := authService.BootstrapSuperAdmin(ctx, services.SuperAdminSeed{
		Username:  seed.Username,
		Email:     seed.Email,
		Password:  seed.Password,
		FirstName: seed.FirstName,
		LastName:  seed.LastName,
	})
	if err != nil {
		log.Fatalf("Failed to create super admin: %v", err)
	}

	if !created {
		fmt.Println("A super admin already exists, nothing to do")
		return
	}

	fmt.Printf("Super admin %s <%s> created\n", seed.Username, seed.Email)
}
