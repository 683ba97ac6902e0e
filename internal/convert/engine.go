package convert

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"golang.org/x/sync/singleflight"
)

// Engine rasterizes page one of an in-memory PDF. Implementations must be
// safe for concurrent use.
type Engine interface {
	// RenderFirstPage renders the first page scaled by the given factor
	// relative to the page's native dimensions.
	RenderFirstPage(ctx context.Context, data []byte, scale float64) (image.Image, error)
}

// Loader lazily initializes a shared Engine. Concurrent first loads collapse
// into a single factory call; a failed load is not cached, so the next call
// retries from scratch.
type Loader struct {
	factory func() (Engine, error)

	group singleflight.Group

	mu     sync.Mutex
	engine Engine
}

// NewLoader returns a Loader around the given engine factory.
func NewLoader(factory func() (Engine, error)) *Loader {
	return &Loader{factory: factory}
}

// Load returns the shared engine, initializing it on first use.
func (l *Loader) Load(ctx context.Context) (Engine, error) {
	l.mu.Lock()
	if l.engine != nil {
		engine := l.engine
		l.mu.Unlock()
		return engine, nil
	}
	l.mu.Unlock()

	ch := l.group.DoChan("engine", func() (interface{}, error) {
		// Re-check under the flight: a caller racing a completed load must
		// not trigger a second factory call.
		l.mu.Lock()
		if l.engine != nil {
			e := l.engine
			l.mu.Unlock()
			return e, nil
		}
		l.mu.Unlock()

		e, err := l.factory()
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.engine = e
		l.mu.Unlock()
		return e, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Engine), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Loaded reports whether an engine has been initialized.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engine != nil
}

// supersampleFactor renders above the target resolution so the Lanczos
// downsample acts as the high-quality smoothing pass.
const supersampleFactor = 2

// nativeDPI is the PDF user-space resolution.
const nativeDPI = 72

type fitzEngine struct{}

func newFitzEngine() (Engine, error) {
	return fitzEngine{}, nil
}

// engineSupported gates conversion on engine availability. The MuPDF engine
// is compiled in, so the default converter is always available; embedders
// can narrow this through WithAvailabilityCheck.
func engineSupported() bool {
	return true
}

// RenderFirstPage parses the document in memory and rasterizes page one.
// MuPDF parse diagnostics are not surfaced; only terminal errors are.
func (fitzEngine) RenderFirstPage(ctx context.Context, data []byte, scale float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		if errors.Is(err, fitz.ErrNeedsPassword) {
			return nil, fmt.Errorf("%w: %v", ErrPasswordProtected, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrInvalidDocument)
	}

	bound, err := doc.Bound(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	img, err := doc.ImageDPI(0, nativeDPI*scale*supersampleFactor)
	if err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}

	// Viewport = native page dimensions x scale.
	width := int(float64(bound.Dx())*scale + 0.5)
	height := int(float64(bound.Dy())*scale + 0.5)
	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}
