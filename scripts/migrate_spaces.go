package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"spacebook/internal/database"
	"spacebook/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type SpacesConfig struct {
	Spaces []models.Space `yaml:"spaces"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		spacesPath = flag.String("spaces", "configs/seed.yaml", "path to yaml with a spaces list")
		dbPath     = flag.String("db", "./data/spacebook.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*spacesPath)
	if err != nil {
		return fmt.Errorf("read spaces: %w", err)
	}
	var cfg SpacesConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse spaces: %w", err)
	}
	if len(cfg.Spaces) == 0 {
		return fmt.Errorf("no spaces in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	existing, err := db.ListSpaces(ctx)
	if err != nil {
		return fmt.Errorf("list spaces: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, s := range existing {
		known[s.Name] = true
	}

	valid := make([]models.Space, 0, len(cfg.Spaces))
	created, updated := 0, 0
	for _, s := range cfg.Spaces {
		if s.Name == "" {
			continue
		}
		if known[s.Name] {
			updated++
		} else {
			created++
		}
		valid = append(valid, s)
	}

	if err = db.UpsertSpaces(ctx, valid); err != nil {
		return fmt.Errorf("upsert spaces: %w", err)
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
