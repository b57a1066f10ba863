package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nakasem/internal/config"
	"nakasem/internal/listener"
	"nakasem/internal/logging"
	"nakasem/internal/ocr"
	"nakasem/internal/pipeline"
	"nakasem/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	must(err)
	defer func() { _ = log.Sync() }()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	runner := ocr.NewExecRunner(log)
	processor := pipeline.NewProcessingService(db, cfg, ocr.NewTesseract(cfg, runner, log), ocr.NewPdftoppm(cfg, runner), log)

	svc := listener.NewService(db, cfg, processor, log)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
