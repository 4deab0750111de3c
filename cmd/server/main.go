package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adforge/preview/internal/infrastructure/config"
	"github.com/adforge/preview/internal/infrastructure/logging"
	"github.com/adforge/preview/internal/server"
)

func main() {
	port := flag.String("port", "", "Server port (overrides PORT)")
	width := flag.Int("width", 0, "Default slot width (overrides PREVIEW_WIDTH)")
	height := flag.Int("height", 0, "Default slot height (overrides PREVIEW_HEIGHT)")
	placement := flag.String("placement", "", "Default placement: inline or interstitial")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *width > 0 {
		cfg.Preview.Width = *width
	}
	if *height > 0 {
		cfg.Preview.Height = *height
	}
	if *placement != "" {
		cfg.Preview.Placement = *placement
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var logger *logging.Logger
	if *dev {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}
	defer logger.Sync()

	srv := server.New(cfg, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("server error: %v", err)
	}
}
