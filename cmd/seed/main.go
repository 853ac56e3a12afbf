package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kanhaiya5613/Backend/internal/config"
	"github.com/kanhaiya5613/Backend/internal/security"
)

var (
	demoID    = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	creatorID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

func main() {
	env := getEnv("VT_ENV", "dev")
	if env != "dev" && env != "test" {
		log.Fatalf("refusing to seed: VT_ENV must be 'dev' or 'test' (got '%s')", env)
	}

	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	db := getEnv("POSTGRES_DB", "videotube")
	user := getEnv("POSTGRES_USER", "videotube")
	password := getEnv("POSTGRES_PASSWORD", "videotube")
	sslmode := getEnv("POSTGRES_SSLMODE", "disable")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, db, sslmode)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	fmt.Println("Seeding database...")

	if err := seedUsers(ctx, pool); err != nil {
		log.Fatalf("seed users: %v", err)
	}
	fmt.Println("✓ Users seeded")

	if err := seedSubscriptions(ctx, pool); err != nil {
		log.Fatalf("seed subscriptions: %v", err)
	}
	fmt.Println("✓ Subscriptions seeded")

	if os.Getenv("SEED_TESTDATA") == "1" {
		if err := seedTestData(ctx, pool); err != nil {
			log.Fatalf("seed test data: %v", err)
		}
		fmt.Println("✓ Test data seeded")
	}

	fmt.Println("\n=== Seed Complete ===")
	fmt.Println("\nDemo Credentials:")
	fmt.Println("  Username: demo      Password: demo123")
	fmt.Println("  Username: creator   Password: creator123")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) error {
	params := config.Argon2Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}

	demoHash, err := security.HashPassword("demo123", params)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}

	creatorHash, err := security.HashPassword("creator123", params)
	if err != nil {
		return fmt.Errorf("hash creator password: %w", err)
	}

	users := []struct {
		id       uuid.UUID
		username string
		email    string
		fullName string
		hash     string
	}{
		{demoID, "demo", "demo@example.com", "Demo Viewer", demoHash},
		{creatorID, "creator", "creator@example.com", "Demo Creator", creatorHash},
	}

	for _, u := range users {
		_, err := pool.Exec(ctx, `
			INSERT INTO users (id, username, email, full_name, password_hash, avatar_url, avatar_public_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (username) DO UPDATE
			SET email = EXCLUDED.email,
			    full_name = EXCLUDED.full_name,
			    password_hash = EXCLUDED.password_hash,
			    updated_at = now()
		`, u.id, u.username, u.email, u.fullName, u.hash,
			"https://placehold.co/256x256/png?text="+u.username, "seed/"+u.username)
		if err != nil {
			return err
		}
	}

	return nil
}

func seedSubscriptions(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO subscriptions (subscriber_id, channel_id)
		VALUES ($1, $2)
		ON CONFLICT (subscriber_id, channel_id) DO NOTHING
	`, demoID, creatorID)
	return err
}
