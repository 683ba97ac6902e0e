package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatReply(t *testing.T, w http.ResponseWriter, content any) {
	t.Helper()
	raw, err := json.Marshal(content)
	require.NoError(t, err)
	fmt.Fprintf(w, `{"choices":[{"message":{"content":%s}}]}`, raw)
}

func TestReview_StringContent(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		chatReply(t, w, validFeedbackJSON)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", "gpt-test", 5*time.Second)
	fb, err := c.Review(context.Background(), ReviewRequest{
		ResumeText: "Jane Doe, Go engineer",
		JobTitle:   "Backend Engineer",
	})
	require.NoError(t, err)
	assert.Equal(t, 78, fb.OverallScore)

	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "gpt-test", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Contains(t, gotReq.Messages[1].Content, "Job title: Backend Engineer")
	assert.Contains(t, gotReq.Messages[1].Content, "Jane Doe, Go engineer")
}

func TestReview_PartListContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, []map[string]string{{"type": "text", "text": validFeedbackJSON}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "gpt-test", 5*time.Second)
	fb, err := c.Review(context.Background(), ReviewRequest{ResumeText: "text"})
	require.NoError(t, err)
	assert.Equal(t, 78, fb.OverallScore)
}

func TestReview_FencedContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "```json\n"+validFeedbackJSON+"\n```")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "gpt-test", 5*time.Second)
	fb, err := c.Review(context.Background(), ReviewRequest{ResumeText: "text"})
	require.NoError(t, err)
	assert.Equal(t, 78, fb.OverallScore)
}

func TestReview_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limit exceeded"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "gpt-test", 5*time.Second)
	_, err := c.Review(context.Background(), ReviewRequest{ResumeText: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestReview_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "gpt-test", 5*time.Second)
	_, err := c.Review(context.Background(), ReviewRequest{ResumeText: "text"})
	assert.Error(t, err)
}

func TestMessageText(t *testing.T) {
	s, err := messageText(json.RawMessage(`"hello"`))
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	s, err = messageText(json.RawMessage(`[{"type":"text","text":"hi"},{"type":"text","text":"ignored"}]`))
	require.NoError(t, err)
	assert.Equal(t, "hi", s)

	_, err = messageText(nil)
	assert.Error(t, err)

	_, err = messageText(json.RawMessage(`{"weird":true}`))
	assert.Error(t, err)
}
