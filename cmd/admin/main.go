package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/seowithroki-star/file-store-bot/internal/registry"
	"github.com/seowithroki-star/file-store-bot/internal/storage"
)

func main() {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	storageSvc := storage.NewStorageService(db, nil) // No redis needed for admin CLI

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands: stats, revoke <token>, sweep <ttl-hours>, subscribers")
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "stats":
		if err := printStats(storageSvc); err != nil {
			log.Fatalf("Error reading stats: %v", err)
		}
	case "revoke":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin revoke <token>")
			os.Exit(1)
		}
		token := os.Args[2]
		if err := revokeToken(storageSvc, token); err != nil {
			log.Fatalf("Error revoking token: %v", err)
		}
		fmt.Printf("Token %s has been revoked.\n", token)
	case "sweep":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin sweep <ttl-hours>")
			os.Exit(1)
		}
		hours, err := strconv.Atoi(os.Args[2])
		if err != nil || hours <= 0 {
			fmt.Println("Invalid TTL. Please provide a positive integer of hours.")
			os.Exit(1)
		}
		count, err := manualSweep(storageSvc, hours)
		if err != nil {
			log.Fatalf("Error sweeping: %v", err)
		}
		fmt.Printf("Evicted %d file(s) older than %dh. Archive copies were left in place.\n", count, hours)
	case "subscribers":
		ids, err := storageSvc.GetSubscriberIDs()
		if err != nil {
			log.Fatalf("Error listing subscribers: %v", err)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func printStats(s *storage.Service) error {
	files, err := s.CountFiles()
	if err != nil {
		return err
	}
	subs, err := s.CountSubscribers()
	if err != nil {
		return err
	}
	runs, err := s.GetRecentBroadcastRuns(5)
	if err != nil {
		return err
	}

	fmt.Printf("Files stored: %d\nSubscribers:  %d\n", files, subs)
	for _, run := range runs {
		fmt.Printf("Broadcast %s: %d/%d delivered, %d failed\n",
			run.StartedAt.Format(time.RFC3339), run.Delivered, run.Total, run.Failed)
	}
	return nil
}

func revokeToken(s *storage.Service, token string) error {
	err := s.DeleteFileByToken(token)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no file found for token %s", token)
	}
	return err
}

// manualSweep evicts without touching the archive channel; the CLI has no
// bot session, so purging the copies stays the reaper's job.
func manualSweep(s *storage.Service, ttlHours int) (int, error) {
	reg := registry.NewRegistry(s)
	refs, err := reg.EvictExpired(time.Duration(ttlHours)*time.Hour, time.Now())
	if err != nil {
		return 0, err
	}
	return len(refs), nil
}
