package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/Huzi7869/ResuMate/internal/handlers"
	u "github.com/Huzi7869/ResuMate/internal/utils"
)

func TestSetupApp_JSONNotFound(t *testing.T) {
	app := SetupApp(u.Config{}, &handlers.ResumeService{})

	resp, err := app.Test(httptest.NewRequest("GET", "/no/such/route", nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 but got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != fiber.MIMEApplicationJSON {
		t.Fatalf("expected JSON content type but got %q", ct)
	}

	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Code != fiber.StatusNotFound || body.Error.Message != "Not Found" {
		t.Fatalf("unexpected error payload: %+v", body.Error)
	}
}

func TestSetupApp_Healthcheck(t *testing.T) {
	app := SetupApp(u.Config{}, &handlers.ResumeService{})

	resp, err := app.Test(httptest.NewRequest("GET", "/livez", nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 but got %d", resp.StatusCode)
	}
}

func TestSetupApp_RejectsInvalidAPIKey(t *testing.T) {
	u.LoadTokensFromMap(map[string]int{"good-token": 0})

	cfg := u.Config{}
	cfg.Auth.Enabled = true
	app := SetupApp(cfg, &handlers.ResumeService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/resumes", nil)
	req.Header.Set("X-API-Key", "bad-token")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 but got %d", resp.StatusCode)
	}
}
