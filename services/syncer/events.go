package syncer

import (
	"time"

	"github.com/google/uuid"
)

const (
	collectionSyncedSubject = "photosync.collections.synced"
	runFinishedSubject      = "photosync.runs.finished"
)

// CollectionSyncedEvent announces the outcome of one collection's sync.
type CollectionSyncedEvent struct {
	RunID         uuid.UUID `json:"run_id"`
	CollectionKey string    `json:"collection_key"`
	CurrentCount  int       `json:"current_count"`
	ArchivedCount int       `json:"archived_count"`
	FailedCount   int       `json:"failed_count"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// CollectionOutcome is the per-collection entry of a RunFinishedEvent.
type CollectionOutcome struct {
	Key    string `json:"key"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RunFinishedEvent announces the end of a whole sync run, successful or not.
type RunFinishedEvent struct {
	RunID       uuid.UUID           `json:"run_id"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
	Collections []CollectionOutcome `json:"collections"`
}
