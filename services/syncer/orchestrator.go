package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const summaryFileName = "summary.json"

// collectionState tracks a collection's progress through the sync pipeline.
// A listing failure is fatal for the collection; materialization failures
// degrade per item instead. Failing to write the summary artifact is also
// fatal, since the artifact is the contract consumers read.
type collectionState string

const (
	stateListing       collectionState = "LISTING"
	stateClassifying   collectionState = "CLASSIFYING"
	stateMaterializing collectionState = "MATERIALIZING"
	stateSummarizing   collectionState = "SUMMARIZING"
	stateDone          collectionState = "DONE"
	stateFailed        collectionState = "FAILED"
)

// CollectionResult is the outcome of one collection's sync.
type CollectionResult struct {
	Key             string
	State           collectionState
	Err             error
	CurrentCount    int
	ArchivedCount   int
	FailedCount     int
	DownloadedCount int
	SkippedCount    int
}

// RunReport aggregates a whole run.
type RunReport struct {
	RunID       uuid.UUID
	StartedAt   time.Time
	FinishedAt  time.Time
	Collections []CollectionResult
}

// Orchestrator drives the per-collection pipeline: list, classify via the
// manifest, name, fetch-or-skip, partition, summarize. It owns the manifest
// for the duration of a run and persists it once at the end.
type Orchestrator struct {
	cfg      Config
	manifest *Manifest
	lister   *Lister
	fetcher  *Fetcher
	events   Publisher
	logger   *log.Logger
	now      func() time.Time
}

// NewOrchestrator wires the sync pipeline. events may be nil to disable
// event publishing.
func NewOrchestrator(cfg Config, store ObjectStore, manifest *Manifest, events Publisher, logger *log.Logger) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("object store is required")
	}
	if manifest == nil {
		return nil, errors.New("manifest is required")
	}
	if len(cfg.Collections) == 0 {
		return nil, errors.New("at least one collection is required")
	}
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	return &Orchestrator{
		cfg:      cfg,
		manifest: manifest,
		lister:   NewLister(store, logger),
		fetcher:  NewFetcher(store, logger),
		events:   events,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Run synchronizes every configured collection and persists the manifest
// once afterwards. Collections run under a bounded worker pool; a failed
// collection never aborts its siblings. The returned error is non-nil when
// any collection failed, the run was cancelled, or the manifest could not
// be persisted — the conditions under which the process must exit non-zero.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:       uuid.New(),
		StartedAt:   o.now().UTC(),
		Collections: make([]CollectionResult, len(o.cfg.Collections)),
	}

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Concurrency)
	for i, col := range o.cfg.Collections {
		g.Go(func() error {
			report.Collections[i] = o.syncCollection(ctx, report.RunID, col)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = o.now().UTC()
	lastRunUnix.Set(float64(report.FinishedAt.Unix()))

	var runErr error
	if err := ctx.Err(); err != nil {
		// Cancelled: leave the manifest untouched. Touch is idempotent, so
		// the next run re-derives whatever this one observed.
		runErr = err
	} else if err := o.manifest.Save(); err != nil {
		runErr = fmt.Errorf("persist manifest: %w", err)
	}

	var failures []error
	for _, res := range report.Collections {
		if res.State == stateFailed {
			failures = append(failures, fmt.Errorf("collection %s: %w", res.Key, res.Err))
		}
	}
	if len(failures) > 0 {
		runErr = errors.Join(append([]error{runErr}, failures...)...)
	}

	o.publishRunFinished(ctx, report)
	return report, runErr
}

func (o *Orchestrator) syncCollection(ctx context.Context, runID uuid.UUID, col Collection) CollectionResult {
	tracer := otel.Tracer("photosync/syncer")
	ctx, span := tracer.Start(ctx, "sync.collection")
	span.SetAttributes(attribute.String("collection.key", col.Key))
	defer span.End()

	result := CollectionResult{Key: col.Key, State: stateListing}

	assets, err := o.lister.List(ctx, col)
	if err == nil && len(assets) == 0 {
		err = errors.New("no image assets listed")
	}
	if err != nil {
		// Fatal for this collection only. The previous summary artifact is
		// deliberately left in place rather than overwritten as empty.
		collectionFailuresTotal.WithLabelValues(col.Key).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "listing failed")
		o.logger.Printf("ERROR: collection %s: listing failed: %v", col.Key, err)
		result.State = stateFailed
		result.Err = err
		return result
	}

	result.State = stateClassifying
	now := o.now().UTC()
	classified := make([]ClassifiedAsset, 0, len(assets))
	for _, asset := range assets {
		firstSeen := o.manifest.Touch(col.Key, asset.ID, now)
		bucket, ageDays := Classify(firstSeen, now, o.cfg.ThresholdDays)
		classified = append(classified, ClassifiedAsset{
			Asset:         asset,
			FirstSeenAt:   firstSeen,
			AgeDays:       ageDays,
			Bucket:        bucket,
			LocalFilename: LocalFilename(asset.DisplayName, asset.ID, asset.MIMEType),
		})
	}

	result.State = stateMaterializing
	results := make([]itemResult, 0, len(classified))
	for _, ca := range classified {
		dest := filepath.Join(o.cfg.StoreRoot, col.Key, areaDir(ca.Bucket), ca.LocalFilename)
		downloaded, err := o.fetcher.EnsureMaterialized(ctx, col.Bucket, ca.Asset, dest)
		switch {
		case err != nil:
			itemFailuresTotal.WithLabelValues(col.Key).Inc()
			o.logger.Printf("ERROR: collection %s: asset %s: %v", col.Key, ca.Asset.ID, err)
			result.FailedCount++
		case downloaded:
			downloadsTotal.WithLabelValues(col.Key).Inc()
			result.DownloadedCount++
		default:
			skipsTotal.WithLabelValues(col.Key).Inc()
			result.SkippedCount++
		}
		results = append(results, itemResult{classified: ca, downloaded: downloaded, err: err})
	}

	result.State = stateSummarizing
	summary := o.buildSummary(col, now, results)
	result.CurrentCount = len(summary.CurrentItems)
	result.ArchivedCount = summary.ArchivedCount

	summaryPath := filepath.Join(o.cfg.StoreRoot, col.Key, summaryFileName)
	if err := WriteSummary(summaryPath, summary); err != nil {
		collectionFailuresTotal.WithLabelValues(col.Key).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "summary write failed")
		o.logger.Printf("ERROR: collection %s: %v", col.Key, err)
		result.State = stateFailed
		result.Err = err
		return result
	}

	result.State = stateDone
	o.logger.Printf("INFO: collection %s: %d current, %d archived, %d downloaded, %d skipped, %d failed",
		col.Key, result.CurrentCount, result.ArchivedCount, result.DownloadedCount, result.SkippedCount, result.FailedCount)

	o.publishCollectionSynced(ctx, runID, result, summary.GeneratedAt)
	return result
}

// buildSummary partitions classified assets and orders the current list by
// (first seen, asset id) so the artifact is reproducible regardless of the
// remote listing order.
func (o *Orchestrator) buildSummary(col Collection, now time.Time, results []itemResult) CollectionSummary {
	summary := CollectionSummary{
		CollectionKey:          col.Key,
		GeneratedAt:            now,
		RetentionThresholdDays: o.cfg.ThresholdDays,
		CurrentItems:           []SummaryItem{},
	}

	var current []itemResult
	for _, res := range results {
		if res.classified.Bucket == BucketArchived {
			summary.ArchivedCount++
			continue
		}
		current = append(current, res)
	}

	sort.Slice(current, func(i, j int) bool {
		a, b := current[i].classified, current[j].classified
		if !a.FirstSeenAt.Equal(b.FirstSeenAt) {
			return a.FirstSeenAt.Before(b.FirstSeenAt)
		}
		return a.Asset.ID < b.Asset.ID
	})

	for _, res := range current {
		ca := res.classified
		summary.CurrentItems = append(summary.CurrentItems, SummaryItem{
			Filename:          ca.LocalFilename,
			URL:               areaDir(BucketCurrent) + "/" + ca.LocalFilename,
			SourceDisplayName: ca.Asset.DisplayName,
			FirstSeenAt:       ca.FirstSeenAt,
			AgeDays:           ca.AgeDays,
			Materialized:      res.err == nil,
		})
	}

	return summary
}

func (o *Orchestrator) publishCollectionSynced(ctx context.Context, runID uuid.UUID, res CollectionResult, generatedAt time.Time) {
	if o.events == nil {
		return
	}
	evt := CollectionSyncedEvent{
		RunID:         runID,
		CollectionKey: res.Key,
		CurrentCount:  res.CurrentCount,
		ArchivedCount: res.ArchivedCount,
		FailedCount:   res.FailedCount,
		GeneratedAt:   generatedAt,
	}
	if err := o.events.Publish(ctx, collectionSyncedSubject, evt); err != nil {
		o.logger.Printf("WARN: publish %s for %s: %v", collectionSyncedSubject, res.Key, err)
	}
}

func (o *Orchestrator) publishRunFinished(ctx context.Context, report *RunReport) {
	if o.events == nil {
		return
	}
	evt := RunFinishedEvent{
		RunID:      report.RunID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	for _, res := range report.Collections {
		outcome := CollectionOutcome{Key: res.Key, Status: string(res.State)}
		if res.Err != nil {
			outcome.Error = res.Err.Error()
		}
		evt.Collections = append(evt.Collections, outcome)
	}
	if err := o.events.Publish(ctx, runFinishedSubject, evt); err != nil {
		o.logger.Printf("WARN: publish %s: %v", runFinishedSubject, err)
	}
}

func areaDir(b Bucket) string {
	if b == BucketArchived {
		return "archive"
	}
	return "current"
}
