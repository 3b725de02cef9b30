package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/set-night/terranote/internal/fakeosm"
)

func main() {
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	port := os.Getenv("FAKE_OSM_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := fakeosm.New().App()
	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	slog.Info("fake osm listening", "port", port)
	if err := app.Listen(":" + port); err != nil {
		slog.Error("fake osm stopped", "error", err)
		os.Exit(1)
	}
}
