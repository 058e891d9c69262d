package main

import (
	"context"
	"flag"
	"log"
	"os"

	"WhaleWatch/internal/di"
	"WhaleWatch/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "config file path (optional; WW_* env vars override it)")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(context.Background()); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
