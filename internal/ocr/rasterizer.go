package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"nakasem/internal/config"
)

// Pdftoppm renders PDF pages to PNG images with poppler's pdftoppm.
type Pdftoppm struct {
	bin      string
	dpi      int
	maxPages int
	runner   Runner
}

func NewPdftoppm(cfg config.Config, runner Runner) *Pdftoppm {
	return &Pdftoppm{bin: cfg.PdftoppmBin, dpi: cfg.OCRDPI, maxPages: cfg.OCRMaxPages, runner: runner}
}

func (p *Pdftoppm) Rasterize(ctx context.Context, content []byte) ([][]byte, error) {
	tmpDir, err := os.MkdirTemp("", "nakasem-pp-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, content, 0o600); err != nil {
		return nil, err
	}

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(p.dpi), "-png"}
	if p.maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(p.maxPages))
	}
	args = append(args, in, prefix)
	if _, errb, err := p.runner.Run(ctx, p.bin, args...); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	// pdftoppm zero-pads page numbers to a common width, so names sort in page order.
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if p.maxPages > 0 && len(matches) > p.maxPages {
		matches = matches[:p.maxPages]
	}
	if len(matches) == 0 {
		return nil, errors.New("pdftoppm produced no images")
	}

	images := make([][]byte, 0, len(matches))
	for _, m := range matches {
		blob, err := os.ReadFile(m)
		if err != nil {
			return nil, err
		}
		images = append(images, blob)
	}
	return images, nil
}
