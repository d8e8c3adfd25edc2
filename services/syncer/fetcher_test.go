package syncer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestFetcher(store ObjectStore) *Fetcher {
	f := NewFetcher(store, nil)
	f.initialInterval = time.Millisecond
	return f
}

func TestEnsureMaterializedSkipsExisting(t *testing.T) {
	store := newFakeStore()
	store.add("photos/buddy.jpg", "image/jpeg", []byte("remote bytes"))

	dest := filepath.Join(t.TempDir(), "buddy.jpg")
	if err := os.WriteFile(dest, []byte("local bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	downloaded, err := newTestFetcher(store).EnsureMaterialized(context.Background(), "pics", RemoteAsset{ID: "photos/buddy.jpg"}, dest)
	if err != nil {
		t.Fatalf("EnsureMaterialized() error = %v", err)
	}
	if downloaded {
		t.Fatal("EnsureMaterialized() reported a download for an existing file")
	}
	if got := store.calls("photos/buddy.jpg"); got != 0 {
		t.Fatalf("GetObject called %d times, want 0", got)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "local bytes" {
		t.Fatalf("existing content overwritten: %q", data)
	}
}

func TestEnsureMaterializedDownloadsMissing(t *testing.T) {
	store := newFakeStore()
	store.add("photos/buddy.jpg", "image/jpeg", []byte("remote bytes"))

	dest := filepath.Join(t.TempDir(), "buddy.jpg")
	downloaded, err := newTestFetcher(store).EnsureMaterialized(context.Background(), "pics", RemoteAsset{ID: "photos/buddy.jpg"}, dest)
	if err != nil {
		t.Fatalf("EnsureMaterialized() error = %v", err)
	}
	if !downloaded {
		t.Fatal("EnsureMaterialized() reported no download for a missing file")
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "remote bytes" {
		t.Fatalf("materialized content = %q, want remote bytes", data)
	}
	if _, err := os.Stat(dest + partialSuffix); !os.IsNotExist(err) {
		t.Fatalf("partial file left behind: stat error = %v", err)
	}
}

func TestEnsureMaterializedReplacesEmptyFile(t *testing.T) {
	store := newFakeStore()
	store.add("photos/buddy.jpg", "image/jpeg", []byte("remote bytes"))

	dest := filepath.Join(t.TempDir(), "buddy.jpg")
	if err := os.WriteFile(dest, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	// A zero-byte destination is treated as incomplete, not materialized.
	downloaded, err := newTestFetcher(store).EnsureMaterialized(context.Background(), "pics", RemoteAsset{ID: "photos/buddy.jpg"}, dest)
	if err != nil {
		t.Fatalf("EnsureMaterialized() error = %v", err)
	}
	if !downloaded {
		t.Fatal("empty destination did not trigger a download")
	}
}

func TestEnsureMaterializedRetriesTransientFailures(t *testing.T) {
	store := newFakeStore()
	store.add("photos/buddy.jpg", "image/jpeg", []byte("remote bytes"))
	store.failNext("photos/buddy.jpg", timeoutError{}, timeoutError{})

	dest := filepath.Join(t.TempDir(), "buddy.jpg")
	downloaded, err := newTestFetcher(store).EnsureMaterialized(context.Background(), "pics", RemoteAsset{ID: "photos/buddy.jpg"}, dest)
	if err != nil {
		t.Fatalf("EnsureMaterialized() error = %v, want success on third attempt", err)
	}
	if !downloaded {
		t.Fatal("EnsureMaterialized() reported no download")
	}
	if got := store.calls("photos/buddy.jpg"); got != 3 {
		t.Fatalf("GetObject called %d times, want 3", got)
	}
}

func TestEnsureMaterializedDoesNotRetryPermanentErrors(t *testing.T) {
	store := newFakeStore()

	dest := filepath.Join(t.TempDir(), "gone.jpg")
	_, err := newTestFetcher(store).EnsureMaterialized(context.Background(), "pics", RemoteAsset{ID: "photos/gone.jpg"}, dest)
	if err == nil {
		t.Fatal("EnsureMaterialized() error = nil for a missing object")
	}
	if got := store.calls("photos/gone.jpg"); got != 1 {
		t.Fatalf("GetObject called %d times for a permanent error, want 1", got)
	}
}

func TestEnsureMaterializedGivesUpAfterMaxTries(t *testing.T) {
	store := newFakeStore()
	store.add("photos/buddy.jpg", "image/jpeg", []byte("remote bytes"))
	store.failNext("photos/buddy.jpg", timeoutError{}, timeoutError{}, timeoutError{})

	dest := filepath.Join(t.TempDir(), "buddy.jpg")
	_, err := newTestFetcher(store).EnsureMaterialized(context.Background(), "pics", RemoteAsset{ID: "photos/buddy.jpg"}, dest)
	if err == nil {
		t.Fatal("EnsureMaterialized() error = nil after exhausting retries")
	}
	if got := store.calls("photos/buddy.jpg"); got != 3 {
		t.Fatalf("GetObject called %d times, want 3", got)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("destination exists after failed download: stat error = %v", statErr)
	}
}
