package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/gofiber/fiber/v2"

	"github.com/Huzi7869/ResuMate/internal/ai"
	"github.com/Huzi7869/ResuMate/internal/storage"
	u "github.com/Huzi7869/ResuMate/internal/utils"
)

const reportHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: Helvetica, Arial, sans-serif; color: #1f2430; margin: 2em; }
  h1 { font-size: 22px; margin-bottom: 0; }
  .meta { color: #6b7280; font-size: 12px; margin-bottom: 1.5em; }
  .overall { font-size: 40px; font-weight: bold; margin: 0.3em 0 0.8em; }
  .section { margin-bottom: 1.2em; page-break-inside: avoid; }
  .section h2 { font-size: 15px; border-bottom: 1px solid #d1d5db; padding-bottom: 4px; }
  .score { float: right; font-weight: bold; }
  ul { margin: 0.4em 0; padding-left: 1.2em; }
  li { font-size: 12px; margin-bottom: 0.3em; }
  .good { color: #15803d; }
  .improve { color: #b45309; }
  .explanation { color: #6b7280; display: block; }
</style>
</head>
<body>
  <h1>Resume Review{{if .JobTitle}} — {{.JobTitle}}{{if .CompanyName}} at {{.CompanyName}}{{end}}{{end}}</h1>
  <div class="meta">{{.FileName}} · {{.CreatedAt.Format "2 Jan 2006 15:04 MST"}}</div>
  <div class="overall">{{.Feedback.OverallScore}}/100</div>
  {{range .Sections}}
  <div class="section">
    <h2>{{.Title}} <span class="score">{{.Score}}/100</span></h2>
    <ul>
      {{range .Tips}}
      <li class="{{.Type}}">{{.Tip}}{{if .Explanation}}<span class="explanation">{{.Explanation}}</span>{{end}}</li>
      {{end}}
    </ul>
  </div>
  {{end}}
</body>
</html>`

var reportTemplate = template.Must(template.New("report").Parse(reportHTML))

type reportSection struct {
	Title string
	Score int
	Tips  []reportTip
}

type reportTip struct {
	Type        string
	Tip         string
	Explanation string
}

// buildReportHTML renders the printable report for one analysis.
func buildReportHTML(record *storage.Analysis) (string, error) {
	if record.Feedback == nil {
		return "", fmt.Errorf("analysis %s has no feedback", record.ID)
	}

	fb := record.Feedback
	sections := []reportSection{
		{Title: "ATS Compatibility", Score: fb.ATS.Score, Tips: reportTips(fb.ATS.Tips)},
		{Title: "Tone & Style", Score: fb.ToneAndStyle.Score, Tips: reportTips(fb.ToneAndStyle.Tips)},
		{Title: "Content", Score: fb.Content.Score, Tips: reportTips(fb.Content.Tips)},
		{Title: "Structure", Score: fb.Structure.Score, Tips: reportTips(fb.Structure.Tips)},
		{Title: "Skills", Score: fb.Skills.Score, Tips: reportTips(fb.Skills.Tips)},
	}

	var buf bytes.Buffer
	err := reportTemplate.Execute(&buf, struct {
		*storage.Analysis
		Sections []reportSection
	}{record, sections})
	if err != nil {
		return "", fmt.Errorf("rendering report template: %w", err)
	}
	return buf.String(), nil
}

func reportTips(tips []ai.Tip) []reportTip {
	out := make([]reportTip, 0, len(tips))
	for _, t := range tips {
		out = append(out, reportTip{Type: t.Type, Tip: t.Tip, Explanation: t.Explanation})
	}
	return out
}

// HandleReport renders a stored analysis as a PDF report through headless
// Chrome.
func (svc *ResumeService) HandleReport(c *fiber.Ctx) error {
	record, err := svc.Analyses.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Analysis not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to load analysis")
	}

	html, err := buildReportHTML(record)
	if err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "Analysis has no feedback to report")
	}

	pdfBuf, err := svc.printReport(html)
	if err != nil {
		u.Error("Report rendering failed", "id", record.ID, "error", err.Error())
		return fiber.NewError(fiber.StatusInternalServerError, "Report rendering failed")
	}

	u.Info("Report generated", "id", record.ID, "bytes", len(pdfBuf))
	c.Set("Content-Type", "application/pdf")
	c.Set("Content-Disposition", "attachment; filename=resume-review-"+record.ID+".pdf")
	return c.Send(pdfBuf)
}

// printReport runs a headless Chrome instance and prints the HTML to PDF.
func (svc *ResumeService) printReport(html string) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "resumate-chrome-*")
	if err != nil {
		return nil, fmt.Errorf("cannot create temp profile dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	allocatorOptions := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(tmpDir),
		// Force software rendering in minimal container environments.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if svc.Config.Report.ChromePath != "" {
		allocatorOptions = append(allocatorOptions, chromedp.ExecPath(svc.Config.Report.ChromePath))
	}
	if svc.Config.Report.ChromeNoSandbox {
		allocatorOptions = append(allocatorOptions, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, _ := chromedp.NewExecAllocator(context.Background(), allocatorOptions...)
	chromeCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	timeout := time.Duration(svc.Config.Report.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	chromeCtx, cancel = context.WithTimeout(chromeCtx, timeout)
	defer cancel()

	var pdfBuf []byte
	err = chromedp.Run(chromeCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frame, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frame.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfBuf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.4).
				WithMarginBottom(0.4).
				WithMarginLeft(0.4).
				WithMarginRight(0.4).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuf, nil
}
