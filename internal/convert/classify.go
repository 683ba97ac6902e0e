package convert

import "errors"

// ErrorKind is the structured failure category of a conversion. It replaces
// message sniffing with an explicit mapping so callers can branch without
// parsing text.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	// KindContext: the converter cannot run in this environment.
	KindContext
	// KindFormat: the upload is not a PDF.
	KindFormat
	// KindSizeLimit: the upload exceeds MaxUploadBytes.
	KindSizeLimit
	// KindInvalidDocument: the bytes do not parse as a PDF.
	KindInvalidDocument
	// KindPasswordProtected: the document is encrypted.
	KindPasswordProtected
	// KindEngineLoad: the rendering engine failed to initialize.
	KindEngineLoad
	// KindEncode: rasterization or PNG serialization failed.
	KindEncode
	// KindUnknown: anything else; the raw message is surfaced.
	KindUnknown
)

// Sentinel errors engines report so classification stays structural.
var (
	ErrInvalidDocument   = errors.New("invalid PDF document")
	ErrPasswordProtected = errors.New("document is password protected")
	ErrEngineLoad        = errors.New("rendering engine failed to load")
	ErrNoDrawingSurface  = errors.New("no drawing surface available")
)

// User-facing messages per kind.
var kindMessages = map[ErrorKind]string{
	KindContext:           "PDF conversion is not available in this environment",
	KindFormat:            "File is not a PDF",
	KindSizeLimit:         "File size exceeds 50MB limit",
	KindInvalidDocument:   "This PDF appears to be corrupted or is not a valid PDF file.",
	KindPasswordProtected: "Password-protected PDFs are not supported.",
	KindEngineLoad:        "PDF processing worker failed to load. Please try again.",
	KindEncode:            "Failed to convert PDF",
}

func failure(kind ErrorKind) Result {
	return Result{Kind: kind, Error: kindMessages[kind]}
}

// Classify maps an engine error onto an ErrorKind. Precedence: invalid
// document, then password protection, then engine load failure, then the
// raw message.
func Classify(err error) (ErrorKind, string) {
	switch {
	case err == nil:
		return KindNone, ""
	case errors.Is(err, ErrInvalidDocument):
		return KindInvalidDocument, kindMessages[KindInvalidDocument]
	case errors.Is(err, ErrPasswordProtected):
		return KindPasswordProtected, kindMessages[KindPasswordProtected]
	case errors.Is(err, ErrEngineLoad):
		return KindEngineLoad, kindMessages[KindEngineLoad]
	default:
		msg := err.Error()
		if msg == "" {
			msg = "Failed to convert PDF"
		}
		return KindUnknown, msg
	}
}

func classified(err error) Result {
	kind, msg := Classify(err)
	return Result{Kind: kind, Error: msg}
}
