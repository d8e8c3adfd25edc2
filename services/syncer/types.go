package syncer

import (
	"context"
	"io"
	"time"

	gos3 "photosync/pkg/s3"
)

// RemoteAsset is one image asset as reported by the remote store. It is an
// immutable snapshot taken at listing time; durable identity lives in the
// manifest, not here.
type RemoteAsset struct {
	// ID is the object key, the stable identity of the asset within its
	// collection's bucket.
	ID          string
	DisplayName string
	MIMEType    string
	Size        int64
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

// Bucket is the retention verdict for an asset.
type Bucket string

const (
	BucketCurrent  Bucket = "current"
	BucketArchived Bucket = "archived"
)

// ClassifiedAsset pairs a listed asset with its retention verdict and local
// destination. Rebuilt from scratch every run, never persisted.
type ClassifiedAsset struct {
	Asset         RemoteAsset
	FirstSeenAt   time.Time
	AgeDays       int
	Bucket        Bucket
	LocalFilename string
}

// itemResult is the per-asset outcome of the materialization loop. Download
// failures are expected and collected here instead of aborting the
// collection.
type itemResult struct {
	classified ClassifiedAsset
	downloaded bool
	err        error
}

// ObjectStore is the surface of the remote store the sync pipeline depends
// on, implemented by pkg/s3 and by fakes in tests.
type ObjectStore interface {
	ListObjects(ctx context.Context, bucket, prefix string) ([]gos3.ObjectInfo, error)
	HeadContentType(ctx context.Context, bucket, key string) (string, error)
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Publisher is the event-bus surface used to announce sync results,
// implemented by pkg/bus.
type Publisher interface {
	Publish(ctx context.Context, subj string, v any) error
}
