package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/noah-isme/toko-cart/internal/app"
	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/store/postgres"
)

var defaultProducts = []cart.Product{
	{ID: "kopi-arabika-250g", Name: "Kopi Arabika Gayo 250g", Price: 85000},
	{ID: "teh-melati-100g", Name: "Teh Melati 100g", Price: 25000},
	{ID: "gula-aren-500g", Name: "Gula Aren 500g", Price: 32000},
	{ID: "madu-hutan-350ml", Name: "Madu Hutan 350ml", Price: 120000},
	{ID: "keripik-singkong", Name: "Keripik Singkong Balado", Price: 18000},
}

func main() {
	file := flag.String("file", "", "JSON file with products to upsert (defaults to a built-in sample catalog)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	products := defaultProducts
	if *file != "" {
		loaded, err := app.LoadProducts(*file)
		if err != nil {
			log.Fatalf("Failed to load products: %v", err)
		}
		products = loaded
	}

	if err := postgres.Migrate(dbURL); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	st := postgres.New(pool)
	for _, p := range products {
		if err := st.UpsertProduct(ctx, p); err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.ID, err)
		}
	}
	log.Printf("Seeded %d products", len(products))
}
