package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/learnhubhq/learnhub-api/config"
	"github.com/learnhubhq/learnhub-api/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	settings, err := config.Get()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	store, err := database.StartGORM(settings)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	fmt.Println("LearnHub - Database Seeding")

	if err := database.RunSeeds(store.DB()); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	fmt.Println("Seeding completed successfully")
}
