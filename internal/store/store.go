// Package store holds completed enhancement results between the form POST
// and the result page that displays them.
//
// Results are short-lived handoff records, not durable history. Every backend
// expires a record after its TTL (15 minutes by default), and a record is
// written exactly once. Backends: MemoryStore (default, single process),
// RedisStore (shared across server replicas) and DynamoStore (Lambda, where
// consecutive requests may land on different containers).
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fpang/prompt-enhancer/internal/enhance"
)

// DefaultTTL is how long a result stays readable after it is written.
const DefaultTTL = 15 * time.Minute

// ResultStore persists enhancement results for the result page.
// Implementations are safe for concurrent use.
//
// GetResult returns (nil, nil) when the result does not exist or has expired.
type ResultStore interface {
	// PutResult writes a result. ID and CreatedAt are filled in when empty.
	PutResult(ctx context.Context, result *StoredResult) error

	// GetResult reads a result by ID. Returns nil, nil if not found.
	GetResult(ctx context.Context, id string) (*StoredResult, error)
}

// StoredResult is one completed enhancement as shown on the result page.
type StoredResult struct {
	ID             string           `json:"id" dynamodbav:"-"`
	OriginalPrompt string           `json:"originalPrompt" dynamodbav:"originalPrompt"`
	Envelope       enhance.Envelope `json:"result" dynamodbav:"result"`
	HadImage       bool             `json:"hadImage" dynamodbav:"hadImage"`
	CreatedAt      time.Time        `json:"createdAt" dynamodbav:"createdAt"`
}

// NewID returns a fresh result ID.
func NewID() string {
	return uuid.New().String()
}

// ValidID reports whether id has the shape NewID produces. Handlers use it to
// reject garbage before touching a backend.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// prepare fills in the ID and timestamp of a result about to be written.
func prepare(result *StoredResult) {
	if result.ID == "" {
		result.ID = NewID()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
}
