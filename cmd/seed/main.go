// seed inserts development sample data for local testing. Run via
// ./scripts/seed.sh. Idempotent: skips everything if the dev user
// (dev@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gaini88088/expert-pancake/internal/config"
	"github.com/gaini88088/expert-pancake/internal/db"
	identityrepo "github.com/gaini88088/expert-pancake/internal/identity/repository"
	identityservice "github.com/gaini88088/expert-pancake/internal/identity/service"
	"github.com/gaini88088/expert-pancake/internal/security"
	trustrepo "github.com/gaini88088/expert-pancake/internal/trust/repository"
)

const (
	devUserEmail   = "dev@example.com"
	devUserName    = "Dev User"
	devPassword    = "Correct-Horse-42"
	devFingerprint = "dev-fp-laptop"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	pool, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	users := identityrepo.NewPostgresRepository(pool)

	existing, err := users.GetByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		return
	}

	// The verifier enforces the real password policy and hashing, so seeded
	// credentials behave exactly like registered ones.
	verifier := identityservice.NewVerifier(users, security.NewHasher(cfg.BcryptCost), cfg.JWTIssuer)

	user, err := verifier.Register(ctx, devUserEmail, devPassword, devUserName)
	if err != nil {
		log.Fatalf("create dev user: %v", err)
	}

	// Mark one device as already verified so a login from it starts trusted.
	trust := trustrepo.NewPostgresRepository(pool)
	if err := trust.RecordVerifiedLogin(ctx, user.ID, devFingerprint, time.Now().UTC()); err != nil {
		log.Fatalf("seed trust record: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev login: %s / %s\n", devUserEmail, devPassword)
	fmt.Printf("Known device fingerprint: %s\n", devFingerprint)
}
