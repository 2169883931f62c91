package main

import (
	"log"

	"github.com/joho/godotenv"

	"procsight/adapters/api"
	"procsight/internal/config"
	"procsight/internal/container"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}

	server := api.NewServer(appContainer.Store, appContainer.Analysis, appConfig)
	if err := server.Start(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
