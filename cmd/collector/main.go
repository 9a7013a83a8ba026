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

	"github.com/gin-gonic/gin"

	"github.com/LdDl/people-counter/collector"
	"github.com/LdDl/people-counter/internal/config"
	"github.com/LdDl/people-counter/internal/monitoring"
)

var (
	configPath = flag.String("config", "", "Path to YAML configuration file")
)

func main() {
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalln(err)
	}

	store, err := collector.Open(cfg.Collector.DBPath)
	if err != nil {
		log.Fatalln(err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, bus := range cfg.Collector.Buses {
		_, err := store.EnsureBus(ctx, collector.NewBus{
			ID:             bus.ID,
			BusNumber:      bus.BusNumber,
			Route:          bus.Route,
			Capacity:       bus.Capacity,
			AlertThreshold: bus.AlertThreshold,
		})
		if err != nil {
			log.Fatalln(err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    cfg.Collector.Listen,
		Handler: collector.NewServer(store).Router(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("Can't shutdown collector gracefully: %s", err.Error())
		}
	}()

	monitoring.Logf("Collector listening on %s (database: %s, buses: %d)", cfg.Collector.Listen, cfg.Collector.DBPath, len(cfg.Collector.Buses))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalln(err)
	}
}
