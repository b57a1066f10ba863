package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"nakasem/internal"
	"nakasem/internal/catalog"
	"nakasem/internal/logging"
	"nakasem/internal/util"
)

var (
	// ErrNothingRecognized means no page produced a note with at least one item.
	ErrNothingRecognized = errors.New("no delivery note recognized")
	ErrNoRecognizer      = errors.New("page needs OCR but no recognizer is configured")
)

// Page is one page of a source document: either recognized Text or an Image
// that still needs OCR.
type Page struct {
	Number int
	Image  []byte
	Text   string
}

type Recognizer interface {
	Recognize(ctx context.Context, page Page) (string, error)
}

// ProgressFunc receives a percentage that never decreases.
type ProgressFunc func(percent int)

type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

type Options struct {
	SplitBlocks bool
	// ContinueOnPageError keeps notes from readable pages when another page
	// fails; failures are reported in Result.FailedPages.
	ContinueOnPageError bool
	Progress            ProgressFunc
}

type Result struct {
	Notes       []internal.DeliveryNote
	Skipped     []SkippedCode
	FailedPages []*PageError
	Pages       int
}

// Single returns the note when exactly one was recognized.
func (r Result) Single() (internal.DeliveryNote, bool) {
	if len(r.Notes) != 1 {
		return internal.DeliveryNote{}, false
	}
	return r.Notes[0], true
}

// Multiple reports whether the caller has several notes to review.
func (r Result) Multiple() bool {
	return len(r.Notes) > 1
}

type Assembler struct {
	catalog    catalog.Catalog
	recognizer Recognizer
	opts       Options
	log        *zap.Logger
}

func NewAssembler(cat catalog.Catalog, recognizer Recognizer, opts Options, log *zap.Logger) *Assembler {
	return &Assembler{catalog: cat, recognizer: recognizer, opts: opts, log: logging.OrNop(log)}
}

// ExtractPages runs the pages one after another and collects every note that
// has at least one item. Cancellation returns the context error and no notes.
func (a *Assembler) ExtractPages(ctx context.Context, sourceFile string, pages []Page) (Result, error) {
	progress := newProgress(a.opts.Progress)
	progress.report(5)

	result := Result{Pages: len(pages)}
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		number := page.Number
		if number <= 0 {
			number = i + 1
		}

		text, err := a.pageText(ctx, page)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			pageErr := &PageError{Page: number, Err: err}
			if !a.opts.ContinueOnPageError {
				return Result{}, pageErr
			}
			a.log.Warn("page failed", zap.String("source", sourceFile), zap.Int("page", number), zap.Error(err))
			result.FailedPages = append(result.FailedPages, pageErr)
			progress.report(pagePercent(i+1, len(pages)))
			continue
		}

		lines := util.SplitLines(text)
		blocks := [][]string{lines}
		if a.opts.SplitBlocks {
			blocks = SplitBlocks(lines)
		}

		for _, block := range blocks {
			note, skipped := ExtractNote(block, number, sourceFile, a.catalog)
			result.Skipped = append(result.Skipped, skipped...)
			for _, s := range skipped {
				a.log.Debug("code skipped",
					zap.Int("page", number),
					zap.String("code", s.Code),
					zap.String("reason", string(s.Reason)),
				)
			}
			if len(note.Items) == 0 {
				continue
			}
			a.log.Debug("note recognized",
				zap.String("source", sourceFile),
				zap.Int("page", number),
				zap.String("client", note.ClientName),
				zap.String("docNum", util.Deref(note.DocNumber)),
				zap.Int("items", len(note.Items)),
			)
			result.Notes = append(result.Notes, note)
		}

		progress.report(pagePercent(i+1, len(pages)))
	}

	if len(result.Notes) == 0 {
		return result, ErrNothingRecognized
	}
	progress.report(100)
	return result, nil
}

func (a *Assembler) pageText(ctx context.Context, page Page) (string, error) {
	if strings.TrimSpace(page.Text) != "" {
		return page.Text, nil
	}
	if len(page.Image) == 0 {
		return "", nil
	}
	if a.recognizer == nil {
		return "", ErrNoRecognizer
	}
	return a.recognizer.Recognize(ctx, page)
}

// pagePercent spreads finished pages over 5..95.
func pagePercent(done, total int) int {
	if total <= 0 {
		return 95
	}
	return 5 + done*90/total
}

type progressReporter struct {
	fn   ProgressFunc
	last int
}

func newProgress(fn ProgressFunc) *progressReporter {
	return &progressReporter{fn: fn, last: -1}
}

func (p *progressReporter) report(percent int) {
	if p.fn == nil || percent <= p.last {
		return
	}
	p.last = percent
	p.fn(percent)
}
