package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"nakasem/internal/util"
)

// Rasterizer renders every page of a PDF to an image, in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, content []byte) ([][]byte, error)
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true, ".bmp": true, ".gif": true,
}

// IsSupportedDocument reports whether LoadPages understands the file name.
func IsSupportedDocument(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".txt" || ext == ".pdf" || imageExtensions[ext]
}

func LoadPages(ctx context.Context, path string, rasterizer Rasterizer) ([]Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadPagesFromBytes(ctx, filepath.Base(path), content, rasterizer)
}

// LoadPagesFromBytes splits a document into pages. Text files use form feeds
// as page breaks; PDF pages without a text layer are rasterized for OCR.
func LoadPagesFromBytes(ctx context.Context, name string, content []byte, rasterizer Rasterizer) ([]Page, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ext == ".txt":
		var pages []Page
		for i, text := range util.SplitPages(string(content)) {
			pages = append(pages, Page{Number: i + 1, Text: text})
		}
		return pages, nil
	case ext == ".pdf":
		return loadPDF(ctx, content, rasterizer)
	case imageExtensions[ext]:
		return []Page{{Number: 1, Image: content}}, nil
	default:
		return nil, fmt.Errorf("unsupported document type %q", name)
	}
}

func loadPDF(ctx context.Context, content []byte, rasterizer Rasterizer) ([]Page, error) {
	texts, err := pdfTextLayer(content)
	if err != nil {
		if rasterizer == nil {
			return nil, fmt.Errorf("read pdf: %w", err)
		}
		return rasterizedPages(ctx, content, rasterizer, nil)
	}

	pages := make([]Page, len(texts))
	missing := false
	for i, text := range texts {
		pages[i] = Page{Number: i + 1, Text: text}
		if strings.TrimSpace(text) == "" {
			missing = true
		}
	}
	if !missing || rasterizer == nil {
		return pages, nil
	}
	return rasterizedPages(ctx, content, rasterizer, pages)
}

// rasterizedPages fills image data into pages that have no text. With no
// known pages every rendered image becomes a page.
func rasterizedPages(ctx context.Context, content []byte, rasterizer Rasterizer, pages []Page) ([]Page, error) {
	images, err := rasterizer.Rasterize(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("rasterize pdf: %w", err)
	}
	if pages == nil {
		pages = make([]Page, len(images))
		for i := range pages {
			pages[i].Number = i + 1
		}
	}
	for i := range pages {
		if strings.TrimSpace(pages[i].Text) == "" && i < len(images) {
			pages[i].Image = images[i]
		}
	}
	return pages, nil
}

func pdfTextLayer(content []byte) (texts []string, err error) {
	// The pdf reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	texts = make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			texts = append(texts, "")
			continue
		}
		texts = append(texts, text)
	}
	return texts, nil
}
