// Package convert turns page one of a PDF résumé into a PNG preview.
//
// Convert never returns a Go error: every failure comes back inside the
// Result so callers can show it to the user without unwrapping anything.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"strings"
	"time"
)

const (
	// MaxUploadBytes is the hard per-file size limit.
	MaxUploadBytes = 50 * 1024 * 1024

	// RenderScale maps the page's native dimensions to preview pixels.
	RenderScale = 2.0
)

// Request is a single conversion input. Data is read exactly once.
type Request struct {
	Name        string
	Size        int64
	ContentType string
	Data        io.Reader
}

// File is the encoded preview image produced on success.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	ModTime     time.Time
}

// Result is the outcome of one conversion. Exactly one of File and Error is
// set: File == nil iff Error != "". ImageURL is the serving locator for the
// preview and is empty when no Locator is configured or on failure.
type Result struct {
	ImageURL string `json:"imageUrl"`
	File     *File  `json:"-"`
	Kind     ErrorKind
	Error    string `json:"error,omitempty"`
}

// Locator issues an ephemeral serving reference for a produced file.
type Locator interface {
	Locate(f *File) (string, error)
}

// Converter orchestrates validation, engine loading, rasterization and
// encoding. The zero value is not usable; call NewConverter.
type Converter struct {
	loader    *Loader
	locator   Locator
	available func() bool
}

// Option customizes a Converter.
type Option func(*Converter)

// WithEngineFactory overrides how the rendering engine is created. The
// factory runs at most once per successful load; failures are retried on
// the next conversion.
func WithEngineFactory(factory func() (Engine, error)) Option {
	return func(c *Converter) { c.loader = NewLoader(factory) }
}

// WithLocator makes successful conversions carry a serving URL for the
// produced image.
func WithLocator(l Locator) Option {
	return func(c *Converter) { c.locator = l }
}

// WithAvailabilityCheck overrides the runtime gate consulted before any
// other validation.
func WithAvailabilityCheck(fn func() bool) Option {
	return func(c *Converter) { c.available = fn }
}

// NewConverter returns a Converter backed by the MuPDF engine unless
// options say otherwise.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		loader:    NewLoader(newFitzEngine),
		available: engineSupported,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert validates the request, renders page one at RenderScale and
// encodes it as PNG. All failures are reported through the Result.
func (c *Converter) Convert(ctx context.Context, req Request) Result {
	// Validation runs before any engine work; first failed rule wins.
	if !c.available() {
		return failure(KindContext)
	}
	if !looksLikePDF(req.Name, req.ContentType) {
		return failure(KindFormat)
	}
	if req.Size > MaxUploadBytes {
		return failure(KindSizeLimit)
	}

	engine, err := c.loader.Load(ctx)
	if err != nil {
		return classified(fmt.Errorf("%w: %v", ErrEngineLoad, err))
	}

	data, err := io.ReadAll(req.Data)
	if err != nil {
		return classified(fmt.Errorf("reading upload: %w", err))
	}

	img, err := engine.RenderFirstPage(ctx, data, RenderScale)
	if err != nil {
		return classified(err)
	}
	if img == nil {
		return classified(ErrNoDrawingSurface)
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return classified(fmt.Errorf("encoding PNG: %w", err))
	}
	if buf.Len() == 0 {
		return Result{Kind: KindEncode, Error: "Failed to create image blob"}
	}

	file := &File{
		Name:        pngName(req.Name),
		ContentType: "image/png",
		Data:        buf.Bytes(),
		ModTime:     time.Now(),
	}

	url := ""
	if c.locator != nil {
		url, err = c.locator.Locate(file)
		if err != nil {
			return classified(fmt.Errorf("storing image: %w", err))
		}
	}

	return Result{ImageURL: url, File: file}
}

// looksLikePDF accepts a declared PDF media type or a .pdf filename.
func looksLikePDF(name, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}

// pngName swaps a trailing .pdf (any case) for .png.
func pngName(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return name[:len(name)-len(".pdf")] + ".png"
	}
	return name
}
