package main

import (
	"log"

	"github.com/IgrejaConnect/Election-Backend/internal/auth"
	"github.com/IgrejaConnect/Election-Backend/internal/db"
	"github.com/IgrejaConnect/Election-Backend/internal/directory"
	"github.com/IgrejaConnect/Election-Backend/internal/election"
	"github.com/IgrejaConnect/Election-Backend/internal/seeds"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env.local")
	db.Connect()

	auth.Init()
	directory.Init()
	election.Init()

	if err := seeds.SeedAll(); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}
}
