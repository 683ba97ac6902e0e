package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// stubEngine returns a fixed-size image scaled by the requested factor.
type stubEngine struct {
	nativeW, nativeH int
	err              error
	calls            atomic.Int32
}

func (e *stubEngine) RenderFirstPage(ctx context.Context, data []byte, scale float64) (image.Image, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	w := int(float64(e.nativeW)*scale + 0.5)
	h := int(float64(e.nativeH)*scale + 0.5)
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

func stubConverter(engine Engine, opts ...Option) (*Converter, *atomic.Int32) {
	var loads atomic.Int32
	all := append([]Option{WithEngineFactory(func() (Engine, error) {
		loads.Add(1)
		return engine, nil
	})}, opts...)
	return NewConverter(all...), &loads
}

func pdfRequest(name string, data []byte) Request {
	return Request{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: "application/pdf",
		Data:        bytes.NewReader(data),
	}
}

func TestConvert_RejectsNonPDF(t *testing.T) {
	engine := &stubEngine{nativeW: 10, nativeH: 10}
	conv, loads := stubConverter(engine)

	res := conv.Convert(context.Background(), Request{
		Name:        "resume.txt",
		Size:        128,
		ContentType: "text/plain",
		Data:        strings.NewReader("not a pdf"),
	})

	assert.Nil(t, res.File)
	assert.Equal(t, KindFormat, res.Kind)
	assert.Equal(t, "File is not a PDF", res.Error)
	assert.Empty(t, res.ImageURL)
	// Validation failures never reach the engine.
	assert.Equal(t, int32(0), loads.Load())
	assert.Equal(t, int32(0), engine.calls.Load())
}

func TestConvert_AcceptsPDFByExtensionOnly(t *testing.T) {
	conv, _ := stubConverter(&stubEngine{nativeW: 10, nativeH: 10})

	res := conv.Convert(context.Background(), Request{
		Name:        "resume.PDF",
		Size:        4,
		ContentType: "application/octet-stream",
		Data:        strings.NewReader("data"),
	})

	assert.Empty(t, res.Error)
	assert.NotNil(t, res.File)
}

func TestConvert_RejectsOversizedFile(t *testing.T) {
	engine := &stubEngine{nativeW: 10, nativeH: 10}
	conv, _ := stubConverter(engine)

	res := conv.Convert(context.Background(), Request{
		Name:        "resume.pdf",
		Size:        MaxUploadBytes + 1,
		ContentType: "application/pdf",
		Data:        strings.NewReader("irrelevant"),
	})

	assert.Nil(t, res.File)
	assert.Equal(t, KindSizeLimit, res.Kind)
	assert.Equal(t, "File size exceeds 50MB limit", res.Error)
	assert.Equal(t, int32(0), engine.calls.Load())
}

func TestConvert_UnavailableEnvironment(t *testing.T) {
	engine := &stubEngine{nativeW: 10, nativeH: 10}
	conv, loads := stubConverter(engine, WithAvailabilityCheck(func() bool { return false }))

	res := conv.Convert(context.Background(), pdfRequest("resume.pdf", []byte("x")))

	assert.Nil(t, res.File)
	assert.Equal(t, KindContext, res.Kind)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, int32(0), loads.Load())
}

func TestConvert_SuccessProducesScaledPNG(t *testing.T) {
	conv, _ := stubConverter(&stubEngine{nativeW: 612, nativeH: 792})

	res := conv.Convert(context.Background(), pdfRequest("Resume.PDF", []byte("%PDF-1.4")))

	assert.Empty(t, res.Error)
	assert.Equal(t, KindNone, res.Kind)
	if !assert.NotNil(t, res.File) {
		return
	}
	assert.Equal(t, "Resume.png", res.File.Name)
	assert.Equal(t, "image/png", res.File.ContentType)
	assert.WithinDuration(t, time.Now(), res.File.ModTime, time.Minute)

	img, err := png.Decode(bytes.NewReader(res.File.Data))
	assert.NoError(t, err)
	assert.Equal(t, int(612*RenderScale), img.Bounds().Dx())
	assert.Equal(t, int(792*RenderScale), img.Bounds().Dy())
}

func TestConvert_PasswordProtected(t *testing.T) {
	engine := &stubEngine{err: fmt.Errorf("%w: needs password", ErrPasswordProtected)}
	conv, _ := stubConverter(engine)

	res := conv.Convert(context.Background(), pdfRequest("locked.pdf", []byte("x")))

	assert.Nil(t, res.File)
	assert.Equal(t, KindPasswordProtected, res.Kind)
	assert.Equal(t, "Password-protected PDFs are not supported.", res.Error)
}

func TestConvert_LocatorBindsImageURL(t *testing.T) {
	conv, _ := stubConverter(&stubEngine{nativeW: 10, nativeH: 10},
		WithLocator(locatorFunc(func(f *File) (string, error) {
			return "/v1/files/" + f.Name, nil
		})))

	res := conv.Convert(context.Background(), pdfRequest("resume.pdf", []byte("x")))

	assert.Empty(t, res.Error)
	assert.Equal(t, "/v1/files/resume.png", res.ImageURL)
}

type locatorFunc func(f *File) (string, error)

func (fn locatorFunc) Locate(f *File) (string, error) { return fn(f) }

func TestConvert_ConcurrentCallsLoadEngineOnce(t *testing.T) {
	var loads atomic.Int32
	engine := &stubEngine{nativeW: 10, nativeH: 10}
	conv := NewConverter(WithEngineFactory(func() (Engine, error) {
		loads.Add(1)
		time.Sleep(20 * time.Millisecond) // widen the first-load window
		return engine, nil
	}))

	const workers = 8
	var wg sync.WaitGroup
	results := make([]Result, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = conv.Convert(context.Background(), pdfRequest("resume.pdf", []byte("x")))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for _, res := range results {
		assert.Empty(t, res.Error)
		assert.NotNil(t, res.File)
	}
}

func TestLoader_FailedLoadIsRetried(t *testing.T) {
	var loads atomic.Int32
	loader := NewLoader(func() (Engine, error) {
		if loads.Add(1) == 1 {
			return nil, errors.New("fetch failed")
		}
		return &stubEngine{nativeW: 1, nativeH: 1}, nil
	})

	_, err := loader.Load(context.Background())
	assert.Error(t, err)
	assert.False(t, loader.Loaded())

	engine, err := loader.Load(context.Background())
	assert.NoError(t, err)
	assert.NotNil(t, engine)
	assert.True(t, loader.Loaded())
	assert.Equal(t, int32(2), loads.Load())

	// Third call reuses the cached engine.
	_, err = loader.Load(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int32(2), loads.Load())
}

func TestPngName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"resume.pdf", "resume.png"},
		{"Resume.PDF", "Resume.png"},
		{"cv.v2.pdf", "cv.v2.png"},
		{"noext", "noext"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, pngName(tc.in))
	}
}
