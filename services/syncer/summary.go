package syncer

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SummaryItem is one current asset as exposed to the rendering layer. URL is
// the collection-relative path of the materialized file. Materialized is
// false when the download failed this run: the asset stays in the summary,
// but local availability is not guaranteed.
type SummaryItem struct {
	Filename          string    `json:"filename"`
	URL               string    `json:"url"`
	SourceDisplayName string    `json:"sourceDisplayName"`
	FirstSeenAt       time.Time `json:"firstSeenAt"`
	AgeDays           int       `json:"ageInDays"`
	Materialized      bool      `json:"materialized"`
}

// CollectionSummary is the per-collection artifact consumed by the rendering
// layer. It is regenerated in full every run; archived assets contribute
// only to the count.
type CollectionSummary struct {
	CollectionKey          string        `json:"collectionKey"`
	GeneratedAt            time.Time     `json:"generatedAt"`
	RetentionThresholdDays int           `json:"retentionThresholdDays"`
	CurrentItems           []SummaryItem `json:"currentItems"`
	ArchivedCount          int           `json:"archivedCount"`
}

// WriteSummary overwrites the summary artifact at path atomically.
func WriteSummary(path string, summary CollectionSummary) error {
	if summary.CurrentItems == nil {
		summary.CurrentItems = []SummaryItem{}
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary for %s: %w", summary.CollectionKey, err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// ReadSummary loads a previously written summary artifact.
func ReadSummary(path string) (CollectionSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CollectionSummary{}, err
	}
	var summary CollectionSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return CollectionSummary{}, fmt.Errorf("parse summary %s: %w", path, err)
	}
	return summary, nil
}
