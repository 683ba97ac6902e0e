package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Huzi7869/ResuMate/internal/ai"
	"github.com/Huzi7869/ResuMate/internal/convert"
	"github.com/Huzi7869/ResuMate/internal/storage"
	u "github.com/Huzi7869/ResuMate/internal/utils"
)

// Converter turns an uploaded PDF into a PNG preview.
type Converter interface {
	Convert(ctx context.Context, req convert.Request) convert.Result
}

// Reviewer produces a scored critique for résumé text.
type Reviewer interface {
	Review(ctx context.Context, req ai.ReviewRequest) (*ai.Feedback, error)
}

// FileStore is the blob store surface the handlers need.
type FileStore interface {
	Put(name, contentType string, data []byte) (*storage.StoredFile, error)
	Get(id string) ([]byte, error)
	Exists(id string) bool
	Remove(id string) error
	Wipe() error
}

// AnalysisRepo is the record store surface the handlers need.
type AnalysisRepo interface {
	Save(ctx context.Context, a *storage.Analysis) error
	Get(ctx context.Context, id string) (*storage.Analysis, error)
	List(ctx context.Context) ([]*storage.Analysis, error)
	Wipe(ctx context.Context) (int, error)
}

// ResumeService bundles configuration and collaborators for the résumé
// review flow.
type ResumeService struct {
	Config    *u.Config
	Converter Converter
	Files     FileStore
	Analyses  AnalysisRepo
	AI        Reviewer
}

// NewResumeService creates a ResumeService with the default PDF converter.
// The converter's image locator is backed by the given file store, so a
// successful conversion already carries a serving URL.
func NewResumeService(cfg u.Config, files FileStore, analyses AnalysisRepo, reviewer Reviewer) *ResumeService {
	return &ResumeService{
		Config:    &cfg,
		Converter: convert.NewConverter(convert.WithLocator(storeLocator{files})),
		Files:     files,
		Analyses:  analyses,
		AI:        reviewer,
	}
}

// storeLocator adapts a FileStore into the converter's Locator.
type storeLocator struct {
	files FileStore
}

func (l storeLocator) Locate(f *convert.File) (string, error) {
	stored, err := l.files.Put(f.Name, f.ContentType, f.Data)
	if err != nil {
		return "", err
	}
	return stored.URL, nil
}

// HandleUpload accepts a multipart résumé upload, converts it, requests AI
// feedback and persists the analysis record.
func (svc *ResumeService) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "No resume file provided")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Cannot read uploaded file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		u.Error("Failed to read upload", "filename", fileHeader.Filename, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to read uploaded file")
	}

	res := svc.Converter.Convert(c.Context(), convert.Request{
		Name:        fileHeader.Filename,
		Size:        fileHeader.Size,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        bytes.NewReader(data),
	})
	if res.Error != "" {
		u.Warn("Conversion failed", "filename", fileHeader.Filename, "kind", int(res.Kind), "message", res.Error)
		return fiber.NewError(statusForKind(res.Kind), res.Error)
	}

	pdfStored, err := svc.Files.Put(fileHeader.Filename, "application/pdf", data)
	if err != nil {
		u.Error("Failed to store resume", "filename", fileHeader.Filename, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to store resume")
	}

	text, err := convert.ExtractText(data)
	if err != nil || strings.TrimSpace(text) == "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity,
			"Could not extract text from this PDF. It may be image-based or corrupted.")
	}

	feedback, err := svc.AI.Review(c.Context(), ai.ReviewRequest{
		ResumeText:     text,
		CompanyName:    c.FormValue("company_name"),
		JobTitle:       c.FormValue("job_title"),
		JobDescription: c.FormValue("job_description"),
	})
	if err != nil {
		u.Error("AI review failed", "filename", fileHeader.Filename, "error", err)
		return fiber.NewError(fiber.StatusBadGateway, "AI analysis failed. Please try again.")
	}

	record := &storage.Analysis{
		ID:             uuid.NewString(),
		CompanyName:    c.FormValue("company_name"),
		JobTitle:       c.FormValue("job_title"),
		JobDescription: c.FormValue("job_description"),
		FileName:       fileHeader.Filename,
		ResumeFileID:   pdfStored.ID,
		ImageFileID:    path.Base(res.ImageURL),
		ResumePath:     pdfStored.URL,
		ImagePath:      res.ImageURL,
		Feedback:       feedback,
		CreatedAt:      time.Now().UTC(),
	}
	if err := svc.Analyses.Save(c.Context(), record); err != nil {
		u.Error("Failed to save analysis", "id", record.ID, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to save analysis")
	}

	requestID := c.Get("X-Request-ID")
	u.Info("Resume analyzed", "id", record.ID, "filename", fileHeader.Filename,
		"score", feedback.OverallScore, "request_id", requestID)

	return c.Status(fiber.StatusCreated).JSON(record)
}

// HandleGet returns one analysis. A record whose preview image is no longer
// served comes back with the image locator blanked instead of failing.
func (svc *ResumeService) HandleGet(c *fiber.Ctx) error {
	record, err := svc.Analyses.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Analysis not found")
		}
		u.Error("Failed to load analysis", "id", c.Params("id"), "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to load analysis")
	}

	if record.ImageFileID != "" && !svc.Files.Exists(record.ImageFileID) {
		u.Warn("Preview image missing, serving degraded record", "id", record.ID, "image", record.ImageFileID)
		record.ImagePath = ""
	}

	return c.JSON(record)
}

// HandleList returns every stored analysis.
func (svc *ResumeService) HandleList(c *fiber.Ctx) error {
	records, err := svc.Analyses.List(c.Context())
	if err != nil {
		u.Error("Failed to list analyses", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to list analyses")
	}
	if records == nil {
		records = []*storage.Analysis{}
	}
	return c.JSON(fiber.Map{"resumes": records, "count": len(records)})
}

// HandleWipe deletes all analyses and their stored files.
func (svc *ResumeService) HandleWipe(c *fiber.Ctx) error {
	records, err := svc.Analyses.List(c.Context())
	if err != nil {
		u.Error("Failed to list analyses for wipe", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to wipe analyses")
	}
	for _, record := range records {
		if record.ResumeFileID != "" {
			_ = svc.Files.Remove(record.ResumeFileID)
		}
		if record.ImageFileID != "" {
			_ = svc.Files.Remove(record.ImageFileID)
		}
	}

	deleted, err := svc.Analyses.Wipe(c.Context())
	if err != nil {
		u.Error("Failed to wipe analyses", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to wipe analyses")
	}

	u.Info("Wiped analyses", "deleted", deleted)
	return c.JSON(fiber.Map{"deleted": deleted})
}

// HandleFile serves a stored blob; this is the target of the image locator.
func (svc *ResumeService) HandleFile(c *fiber.Ctx) error {
	id := c.Params("id")
	data, err := svc.Files.Get(id)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "File not found")
	}

	contentType := mime.TypeByExtension(filepath.Ext(id))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Set("Content-Type", contentType)
	return c.Send(data)
}

// statusForKind maps a conversion failure category onto an HTTP status.
func statusForKind(kind convert.ErrorKind) int {
	switch kind {
	case convert.KindFormat:
		return fiber.StatusBadRequest
	case convert.KindSizeLimit:
		return fiber.StatusRequestEntityTooLarge
	case convert.KindContext, convert.KindEngineLoad:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusUnprocessableEntity
	}
}
