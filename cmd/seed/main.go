// Command main runs the database seeder for Capsules.
package main

import (
	"flag"
	"log"

	"capsules/internal/config"
	"capsules/internal/database"
	"capsules/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of profiles to create")
	numCapsules := flag.Int("capsules", 200, "Number of capsules to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("Database seeder")
	log.Printf("Target: %d profiles, %d capsules, clean=%v\n", *numUsers, *numCapsules, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db)
	if err := s.Run(seed.Options{
		NumUsers:    *numUsers,
		NumCapsules: *numCapsules,
		ShouldClean: *shouldClean,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Seeding complete")
}
