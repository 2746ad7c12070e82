package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rubywatch/release-index/internal/config"
	"github.com/rubywatch/release-index/internal/feed"
	"github.com/rubywatch/release-index/internal/metrics"
	"github.com/rubywatch/release-index/internal/server"
	"github.com/sirupsen/logrus"
)

var version = "dev"

func setupLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}

func run(log *logrus.Logger) error {
	cfg, err := config.NewServerConfigFromEnv()
	if err != nil {
		return err
	}
	cfg.Version = version

	if !cfg.DisableMetrics {
		log.Println("starting metrics exporter...")
		exporter, exErr := metrics.NewExporter(cfg)
		if exErr != nil {
			return exErr
		}
		defer exporter.Flush()
	}

	log.Println("starting server...")
	srv := &http.Server{
		Addr:    cfg.GetServerAddr(),
		Handler: server.New(log, feed.New(cfg.FetchTimeout), cfg),
	}
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error(err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	log.Println("stopping server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); errors.Is(err, context.DeadlineExceeded) {
		log.Println("closing server...")
		if closeErr := srv.Close(); closeErr != nil {
			return closeErr
		}
	} else if err != nil {
		return err
	}
	log.Println("server stopped!")
	return nil
}

func main() {
	log := setupLogger()
	if err := run(log); err != nil {
		log.Fatal(err)
	}
}
