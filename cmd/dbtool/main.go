package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"techroute-service/internal/adapters/cache"
	"techroute-service/internal/platform/db"
)

// dbtool prepares the Postgres cache store: it applies the schema and,
// with -prune, evicts travel entries older than the retention window.
func main() {
	prune := flag.Bool("prune", false, "delete travel-cache entries older than -retention-days")
	retentionDays := flag.Int("retention-days", 30, "travel-cache retention window in days")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	store, err := db.Open(databaseURL)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer store.Close()

	log.Println("Applying cache schema...")
	if err := cache.InitPostgresSchema(store); err != nil {
		log.Fatalf("init schema: %v", err)
	}
	log.Println("Schema ready.")

	if *prune {
		retention := time.Duration(*retentionDays) * 24 * time.Hour
		travel := cache.NewSQLTravelCache(store, retention)

		n, err := travel.Prune(context.Background())
		if err != nil {
			log.Fatalf("prune travel cache: %v", err)
		}
		log.Printf("Pruned %d stale travel-cache entries.", n)
	}
}
