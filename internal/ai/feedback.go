package ai

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/feedback.schema.json
var feedbackSchemaRaw []byte

var feedbackSchema = gojsonschema.NewBytesLoader(feedbackSchemaRaw)

// Tip is one piece of section feedback. Type is "good" or "improve".
type Tip struct {
	Type        string `json:"type"`
	Tip         string `json:"tip"`
	Explanation string `json:"explanation,omitempty"`
}

// Section scores one aspect of the résumé from 0 to 100.
type Section struct {
	Score int   `json:"score"`
	Tips  []Tip `json:"tips"`
}

// Feedback is the full scored critique: an overall score plus five scored
// sections.
type Feedback struct {
	OverallScore int     `json:"overallScore"`
	ATS          Section `json:"ATS"`
	ToneAndStyle Section `json:"toneAndStyle"`
	Content      Section `json:"content"`
	Structure    Section `json:"structure"`
	Skills       Section `json:"skills"`
}

// ParseFeedback cleans up a model response, validates it against the
// feedback schema and decodes it.
func ParseFeedback(content string) (*Feedback, error) {
	cleaned := stripCodeFences(content)

	result, err := gojsonschema.Validate(feedbackSchema, gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, fmt.Errorf("feedback is not valid JSON: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, fmt.Errorf("feedback does not match schema: %s", strings.Join(problems, "; "))
	}

	var fb Feedback
	if err := json.Unmarshal([]byte(cleaned), &fb); err != nil {
		return nil, fmt.Errorf("decoding feedback: %w", err)
	}
	return &fb, nil
}

// stripCodeFences removes a surrounding markdown code fence, if any, and
// trims everything outside the outermost JSON object.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}
