// Package ai talks to an OpenAI-compatible chat backend to produce a scored
// résumé critique.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls a chat-completions endpoint. Zero value is not usable; use
// NewClient.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewClient returns a Client for the given backend. baseURL is the API root
// without the /v1/chat/completions suffix.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

// ReviewRequest carries the résumé text and optional job context.
type ReviewRequest struct {
	ResumeText     string
	CompanyName    string
	JobTitle       string
	JobDescription string
}

const reviewInstructions = `You are an expert in ATS (Applicant Tracking Systems) and resume analysis.
Analyze and rate the resume below and suggest how to improve it.
Be thorough and detailed. Don't be afraid to point out any mistakes or areas
for improvement; low scores are fine when deserved.
Rate overallScore and the sections ATS, toneAndStyle, content, structure and
skills, each 0-100, each with 3-4 tips of type "good" or "improve". Every tip
carries a short "tip" string; tips outside ATS also carry an "explanation".
Return ONLY a single JSON object with exactly those fields. No markdown, no
code fences, no commentary.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// chatResponse keeps content raw because backends return it either as a
// string or as a list of parts whose first element carries the text.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Review sends the résumé for critique and returns the parsed, validated
// feedback.
func (c *Client) Review(ctx context.Context, req ReviewRequest) (*Feedback, error) {
	var user strings.Builder
	if req.CompanyName != "" {
		fmt.Fprintf(&user, "Company: %s\n", req.CompanyName)
	}
	if req.JobTitle != "" {
		fmt.Fprintf(&user, "Job title: %s\n", req.JobTitle)
	}
	if req.JobDescription != "" {
		fmt.Fprintf(&user, "Job description:\n%s\n\n", req.JobDescription)
	}
	fmt.Fprintf(&user, "Resume:\n%s", req.ResumeText)

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: reviewInstructions},
			{Role: "user", Content: user.String()},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.postWithRetry(ctx, "/v1/chat/completions", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading AI response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decoding AI response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return nil, fmt.Errorf("AI backend error: %s", parsed.Error.Message)
		}
		return nil, fmt.Errorf("AI backend returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("AI backend returned no choices")
	}

	content, err := messageText(parsed.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return ParseFeedback(content)
}

// postWithRetry posts JSON with up to three attempts and exponential backoff
// on transport errors.
func (c *Client) postWithRetry(ctx context.Context, path string, body []byte) (*http.Response, error) {
	const attempts = 3
	var lastErr error
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if i < attempts-1 {
			backoff := time.Duration(1<<i) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// messageText extracts the text from a message content that is either a JSON
// string or a list whose first element carries the text.
func messageText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("AI response has no content")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil && len(parts) > 0 {
		return parts[0].Text, nil
	}

	return "", fmt.Errorf("unrecognized AI response content shape")
}
