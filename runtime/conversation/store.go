package conversation

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no snapshot exists for a conversation.
	ErrNotFound = errors.New("conversation not found")
	// ErrStaleSnapshot is returned by Save when a newer version is already
	// stored. Callers should reload and re-merge.
	ErrStaleSnapshot = errors.New("stale conversation snapshot")
)

// Store persists conversation snapshots between turns.
//
// Contract:
//   - Save persists the snapshot keyed by its ID and rejects writes whose
//     Version is not greater than the stored one with ErrStaleSnapshot.
//   - Load returns ErrNotFound when the conversation does not exist.
//   - Delete is idempotent: removing an absent conversation is not an error.
//
// Implementations must be safe for concurrent use. The core never caches
// snapshots across calls, so stores may evict completed conversations freely.
type Store interface {
	Save(ctx context.Context, s *Snapshot) error
	Load(ctx context.Context, id string) (*Snapshot, error)
	Delete(ctx context.Context, id string) error
}
