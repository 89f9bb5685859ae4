package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"linkpulse.local/internal/platform/config"
	"linkpulse.local/internal/platform/db"
	"linkpulse.local/internal/platform/migrate"
)

// usage: go run ./cmd/tools/migrate [-dir ./migrations]
func main() {
	cfg := config.Load()
	dir := flag.String("dir", cfg.MigrationsDir, "migrations directory (empty = embedded)")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	res, err := migrate.Up(ctx, pool, migrate.Options{Dir: *dir})
	if err != nil {
		log.Fatal(err)
	}
	for _, f := range res.AppliedFiles {
		fmt.Println("applied", f)
	}
	for _, f := range res.SkippedFiles {
		fmt.Println("skipped", f)
	}
}
