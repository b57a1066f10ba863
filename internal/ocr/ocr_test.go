package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nakasem/internal/config"
	"nakasem/internal/pipeline"
)

type call struct {
	name string
	args []string
}

type stubRunner struct {
	calls  []call
	stdout string
	err    error
	// onRun lets a test create the files a real command would write.
	onRun func(args []string)
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, call{name: name, args: args})
	if s.onRun != nil {
		s.onRun(args)
	}
	if s.err != nil {
		return nil, []byte("boom"), s.err
	}
	return []byte(s.stdout), nil, nil
}

func testConfig() config.Config {
	return config.Config{
		TesseractBin:  "tesseract",
		OCRLang:       "heb+eng",
		PdftoppmBin:   "pdftoppm",
		OCRDPI:        300,
		OCRMaxPages:   2,
		OCRTimeoutSec: 5,
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestTesseractRecognize(t *testing.T) {
	runner := &stubRunner{stdout: "חשמל ישיר תל אביב\n5002116 10.00\n"}
	cfg := testConfig()
	cfg.OCRPreprocess = true

	var rec pipeline.Recognizer = NewTesseract(cfg, runner, nil)
	text, err := rec.Recognize(context.Background(), pipeline.Page{Number: 1, Image: pngBytes(t)})
	require.NoError(t, err)
	assert.Contains(t, text, "5002116 10.00")

	require.Len(t, runner.calls, 1)
	c := runner.calls[0]
	assert.Equal(t, "tesseract", c.name)
	assert.Equal(t, []string{"stdout", "-l", "heb+eng", "--psm", "6"}, c.args[1:])
	_, statErr := os.Stat(c.args[0])
	assert.True(t, os.IsNotExist(statErr), "temp image is removed")
}

func TestTesseractFailure(t *testing.T) {
	runner := &stubRunner{err: errors.New("exit status 1")}
	rec := NewTesseract(testConfig(), runner, nil)

	_, err := rec.Recognize(context.Background(), pipeline.Page{Number: 3, Image: []byte("not an image")})
	assert.ErrorContains(t, err, "tesseract")
	assert.ErrorContains(t, err, "boom")
}

func TestPdftoppmRasterize(t *testing.T) {
	runner := &stubRunner{}
	runner.onRun = func(args []string) {
		prefix := args[len(args)-1]
		for i := 1; i <= 3; i++ {
			_ = os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte{byte(i)}, 0o600)
		}
	}

	var ras pipeline.Rasterizer = NewPdftoppm(testConfig(), runner)
	images, err := ras.Rasterize(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{1}, {2}}, images, "capped at max pages")

	args := runner.calls[0].args
	assert.Equal(t, []string{"-r", "300", "-png", "-l", "2"}, args[:5])
	assert.Equal(t, "in.pdf", filepath.Base(args[5]))
}

func TestPdftoppmNoOutput(t *testing.T) {
	_, err := NewPdftoppm(testConfig(), &stubRunner{}).Rasterize(context.Background(), []byte("%PDF"))
	assert.Error(t, err)

	_, err = NewPdftoppm(testConfig(), &stubRunner{err: errors.New("missing")}).Rasterize(context.Background(), []byte("%PDF"))
	assert.ErrorContains(t, err, "pdftoppm")
}

func TestPreprocess(t *testing.T) {
	out, err := Preprocess(pngBytes(t))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	_, err = Preprocess([]byte("garbage"))
	assert.Error(t, err)
}
