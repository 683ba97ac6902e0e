package convert

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// minimalPDF assembles a valid one-page 612x792 PDF with a short line of
// text, computing xref offsets at runtime.
func minimalPDF(t *testing.T) []byte {
	t.Helper()

	var b bytes.Buffer
	offsets := make([]int, 6)
	w := func(s string) { b.WriteString(s) }

	w("%PDF-1.4\n")
	offsets[1] = b.Len()
	w("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = b.Len()
	w("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	offsets[3] = b.Len()
	w("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
		"/Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>\nendobj\n")
	stream := "BT /F1 24 Tf 72 700 Td (Hello Resume) Tj ET"
	offsets[4] = b.Len()
	w(fmt.Sprintf("4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(stream), stream))
	offsets[5] = b.Len()
	w("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xref := b.Len()
	w("xref\n0 6\n")
	w("0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		w(fmt.Sprintf("%010d 00000 n \n", offsets[i]))
	}
	w(fmt.Sprintf("trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref))
	return b.Bytes()
}

func TestFitzEngine_RenderFirstPageDimensions(t *testing.T) {
	engine, err := newFitzEngine()
	assert.NoError(t, err)

	img, err := engine.RenderFirstPage(context.Background(), minimalPDF(t), RenderScale)
	assert.NoError(t, err)
	if !assert.NotNil(t, img) {
		return
	}

	// Viewport is the native 612x792 page at scale 2.0.
	assert.Equal(t, 1224, img.Bounds().Dx())
	assert.Equal(t, 1584, img.Bounds().Dy())
}

func TestFitzEngine_InvalidDocument(t *testing.T) {
	engine, _ := newFitzEngine()

	_, err := engine.RenderFirstPage(context.Background(), []byte("definitely not a pdf"), RenderScale)
	assert.Error(t, err)

	kind, msg := Classify(err)
	assert.Equal(t, KindInvalidDocument, kind)
	assert.Equal(t, "This PDF appears to be corrupted or is not a valid PDF file.", msg)
}

func TestFitzEngine_CanceledContext(t *testing.T) {
	engine, _ := newFitzEngine()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.RenderFirstPage(ctx, minimalPDF(t), RenderScale)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvert_EndToEndWithFitz(t *testing.T) {
	conv := NewConverter()

	data := minimalPDF(t)
	res := conv.Convert(context.Background(), pdfRequest("resume.pdf", data))

	assert.Empty(t, res.Error)
	if !assert.NotNil(t, res.File) {
		return
	}
	assert.Equal(t, "resume.png", res.File.Name)
	assert.Equal(t, "image/png", res.File.ContentType)
	assert.NotEmpty(t, res.File.Data)
}

func TestExtractText(t *testing.T) {
	text, err := ExtractText(minimalPDF(t))
	assert.NoError(t, err)
	assert.Contains(t, text, "Hello")
}
