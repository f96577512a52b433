package main

import (
	"net/http"
	"os"
	"time"

	"cmi-tracker/internal/platform/logger"
	"cmi-tracker/internal/router"
)

func main() {
	log := logger.NewFromEnv()

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	r, err := router.NewRouter(router.Options{Logger: log})
	if err != nil {
		log.Error("router init failed", map[string]any{"err": err.Error()})
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info("starting server", map[string]any{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", map[string]any{"err": err.Error()})
		os.Exit(1)
	}
}
