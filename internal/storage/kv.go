package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Huzi7869/ResuMate/internal/ai"
)

const analysisKeyPrefix = "resume:"

// Analysis is one persisted résumé review.
type Analysis struct {
	ID             string       `json:"id"`
	CompanyName    string       `json:"companyName,omitempty"`
	JobTitle       string       `json:"jobTitle,omitempty"`
	JobDescription string       `json:"jobDescription,omitempty"`
	FileName       string       `json:"fileName"`
	ResumeFileID   string       `json:"resumeFileId"`
	ImageFileID    string       `json:"imageFileId"`
	ResumePath     string       `json:"resumePath"`
	ImagePath      string       `json:"imagePath"`
	Feedback       *ai.Feedback `json:"feedback"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// AnalysisStore persists analyses as JSON under "resume:<uuid>" keys.
type AnalysisStore struct {
	rdb *redis.Client
}

// NewAnalysisStore wraps the given Redis client.
func NewAnalysisStore(rdb *redis.Client) *AnalysisStore {
	return &AnalysisStore{rdb: rdb}
}

// Save writes one record. Records have no TTL.
func (s *AnalysisStore) Save(ctx context.Context, a *Analysis) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding analysis: %w", err)
	}
	if err := s.rdb.Set(ctx, analysisKeyPrefix+a.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("saving analysis: %w", err)
	}
	return nil
}

// Get loads one record by ID, or ErrNotFound.
func (s *AnalysisStore) Get(ctx context.Context, id string) (*Analysis, error) {
	data, err := s.rdb.Get(ctx, analysisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading analysis: %w", err)
	}
	var a Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decoding analysis: %w", err)
	}
	return &a, nil
}

// List returns all stored records. Undecodable records are skipped.
func (s *AnalysisStore) List(ctx context.Context) ([]*Analysis, error) {
	var out []*Analysis
	iter := s.rdb.Scan(ctx, 0, analysisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var a Analysis
		if err := json.Unmarshal(data, &a); err != nil {
			continue
		}
		out = append(out, &a)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning analyses: %w", err)
	}
	return out, nil
}

// Wipe deletes every analysis record and returns how many were removed.
func (s *AnalysisStore) Wipe(ctx context.Context) (int, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, analysisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scanning analyses: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("deleting analyses: %w", err)
	}
	return len(keys), nil
}
