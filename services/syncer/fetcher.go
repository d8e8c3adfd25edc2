package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"time"

	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/cenkalti/backoff/v5"
)

const partialSuffix = ".partial"

// Fetcher materializes remote assets on local storage at most once per
// identity. A destination that already holds content is left untouched
// without any network call.
type Fetcher struct {
	store  ObjectStore
	logger *log.Logger

	// maxTries and initialInterval bound the retry policy for transient
	// download failures. Tests shrink the interval.
	maxTries        uint
	initialInterval time.Duration
}

// NewFetcher creates a Fetcher over the given remote store.
func NewFetcher(store ObjectStore, logger *log.Logger) *Fetcher {
	return &Fetcher{
		store:           store,
		logger:          logger,
		maxTries:        3,
		initialInterval: 500 * time.Millisecond,
	}
}

// EnsureMaterialized downloads the asset to dest unless a non-empty file is
// already there. Content is streamed to a sibling temp file and renamed into
// place on success, so an interrupted download never leaves a destination
// the skip check would mistake for complete. The returned bool reports
// whether a download happened. Transient failures are retried with
// exponential backoff; authorization and not-found errors are not.
func (f *Fetcher) EnsureMaterialized(ctx context.Context, bucket string, asset RemoteAsset, dest string) (bool, error) {
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		return false, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.initialInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := f.downloadOnce(ctx, bucket, asset, dest)
		if err != nil && !isTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		if err != nil && f.logger != nil {
			f.logger.Printf("WARN: download %s/%s failed, retrying: %v", bucket, asset.ID, err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(f.maxTries))
	if err != nil {
		return false, fmt.Errorf("materialize %s: %w", asset.ID, err)
	}

	return true, nil
}

func (f *Fetcher) downloadOnce(ctx context.Context, bucket string, asset RemoteAsset, dest string) error {
	body, err := f.store.GetObject(ctx, bucket, asset.ID)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}

	tmpName := dest + partialSuffix
	tmp, err := os.Create(tmpName)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmpName, err)
	}

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}

	return nil
}

// isTransient separates retryable failures (timeouts, throttling, 5xx) from
// permanent ones (authorization, not-found, cancellation).
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.HTTPStatusCode()
		return code >= 500 || code == 429
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF)
}
