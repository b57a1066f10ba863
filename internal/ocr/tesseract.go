package ocr

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"nakasem/internal/config"
	"nakasem/internal/logging"
	"nakasem/internal/pipeline"
)

// Tesseract recognizes page images with the tesseract command line tool.
type Tesseract struct {
	bin        string
	lang       string
	psm        int
	preprocess bool
	timeout    time.Duration
	runner     Runner
	log        *zap.Logger
}

func NewTesseract(cfg config.Config, runner Runner, log *zap.Logger) *Tesseract {
	return &Tesseract{
		bin:        cfg.TesseractBin,
		lang:       cfg.OCRLang,
		psm:        6,
		preprocess: cfg.OCRPreprocess,
		timeout:    time.Duration(cfg.OCRTimeoutSec) * time.Second,
		runner:     runner,
		log:        logging.OrNop(log),
	}
}

func (t *Tesseract) Recognize(ctx context.Context, page pipeline.Page) (string, error) {
	image := page.Image
	if t.preprocess {
		if processed, err := Preprocess(image); err == nil {
			image = processed
		} else {
			t.log.Debug("preprocess skipped", zap.Int("page", page.Number), zap.Error(err))
		}
	}

	f, err := os.CreateTemp("", "nakasem-page-*.img")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(image); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	args := []string{f.Name(), "stdout", "-l", t.lang}
	if t.psm > 0 {
		args = append(args, "--psm", strconv.Itoa(t.psm))
	}
	out, errb, err := t.runner.Run(ctx, t.bin, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return string(out), nil
}
