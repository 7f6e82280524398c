package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/noah-isme/snapstudio-api/internal/discount"
	"github.com/noah-isme/snapstudio-api/migrations"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	if err := migrations.Up(dbURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	if err := seedDiscountCodes(ctx, &discount.PGStore{Q: pool}, discount.DefaultCodes()); err != nil {
		log.Fatalf("Failed to seed discount codes: %v", err)
	}
	log.Println("Seeding completed successfully!")
}

type upserter interface {
	Upsert(ctx context.Context, c discount.Code) error
}

func seedDiscountCodes(ctx context.Context, store upserter, codes []discount.Code) error {
	log.Println("Seeding discount codes...")
	for _, c := range codes {
		if err := store.Upsert(ctx, c); err != nil {
			return err
		}
		log.Printf("  %s (%s %s)", c.Code, c.Kind, c.Value.String())
	}
	return nil
}
