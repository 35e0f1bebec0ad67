// seed provisions user accounts for local development and first-run setup.
// Idempotent: skips creation when the named user already exists.
package main

import (
	"context"
	"flag"
	"log"

	"authgate/internal/config"
	"authgate/internal/db"
	"authgate/internal/security"
	"authgate/internal/store"
	"authgate/internal/user/domain"
	userrepo "authgate/internal/user/repository"
)

const (
	devUserName  = "dev"
	devPassword  = "password123"
	devAdminName = "admin"
)

func main() {
	name := flag.String("name", "", "Username to provision (default: dev and admin sample users)")
	password := flag.String("password", "", "Password for the provisioned user")
	role := flag.String("role", "user", "Role for the provisioned user (user or admin)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}

	ctx := context.Background()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	users, err := userrepo.New(store.NewEngine(), store.NewPostgresBackend(conn))
	if err != nil {
		log.Fatalf("user repository: %v", err)
	}
	hasher := security.NewHasher(cfg.BcryptCost)

	if *name != "" {
		if *password == "" {
			log.Fatal("seed: -password is required with -name")
		}
		seedUser(ctx, users, hasher, *name, *password, *role)
		return
	}

	seedUser(ctx, users, hasher, devUserName, devPassword, "user")
	seedUser(ctx, users, hasher, devAdminName, devPassword, "admin")
}

func seedUser(ctx context.Context, users *userrepo.Repository, hasher *security.Hasher, name, password, role string) {
	existing, err := users.GetByName(ctx, name)
	if err != nil {
		log.Fatalf("seed: lookup %s: %v", name, err)
	}
	if existing != nil {
		log.Printf("seed: user %s already exists, skipping", name)
		return
	}

	hash, err := hasher.Hash([]byte(password))
	if err != nil {
		log.Fatalf("seed: hash password: %v", err)
	}

	u := &domain.User{Name: name, PasswordHash: hash, Role: role}
	if err := users.Create(ctx, u); err != nil {
		log.Fatalf("seed: create %s: %v", name, err)
	}
	log.Printf("seed: created user %s (role %s, id %s)", name, role, u.ID)
}
