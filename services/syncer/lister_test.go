package syncer

import (
	"context"
	"errors"
	"testing"
)

func TestListFiltersToImages(t *testing.T) {
	store := newFakeStore()
	store.add("pups/buddy.jpg", "image/jpeg", []byte("a"))
	store.add("pups/rex.png", "image/png", []byte("b"))
	store.add("pups/notes.txt", "text/plain", []byte("c"))
	store.add("pups/scan.webp", "application/octet-stream", []byte("d"))
	store.add("pups/blob.bin", "application/octet-stream", []byte("e"))
	store.add("pups/untyped.gif", "", []byte("f"))
	store.add("pups/", "", nil)

	lister := NewLister(store, nil)
	assets, err := lister.List(context.Background(), Collection{Key: "pups", Bucket: "pics", Prefix: "pups/"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	got := make(map[string]bool, len(assets))
	for _, a := range assets {
		got[a.ID] = true
	}
	want := []string{"pups/buddy.jpg", "pups/rex.png", "pups/scan.webp", "pups/untyped.gif"}
	if len(assets) != len(want) {
		t.Fatalf("List() returned %d assets %v, want %d", len(assets), got, len(want))
	}
	for _, key := range want {
		if !got[key] {
			t.Fatalf("List() is missing %s", key)
		}
	}
}

func TestListFailureAbortsCollection(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("access denied")

	lister := NewLister(store, nil)
	if _, err := lister.List(context.Background(), Collection{Key: "pups", Bucket: "pics"}); err == nil {
		t.Fatal("List() error = nil, want listing failure")
	}
}

func TestListSurvivesHeadFailure(t *testing.T) {
	store := newFakeStore()
	store.add("pups/buddy.jpg", "image/jpeg", []byte("a"))
	store.add("pups/notes.txt", "text/plain", []byte("b"))
	store.headErr = errors.New("head unavailable")

	// Without content types the filter falls back to extensions.
	lister := NewLister(store, nil)
	assets, err := lister.List(context.Background(), Collection{Key: "pups", Bucket: "pics"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(assets) != 1 || assets[0].ID != "pups/buddy.jpg" {
		t.Fatalf("List() = %+v, want just pups/buddy.jpg", assets)
	}
	if assets[0].MIMEType != "" {
		t.Fatalf("MIMEType = %q, want empty after head failure", assets[0].MIMEType)
	}
}

func TestIsImageAsset(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		fileName    string
		want        bool
	}{
		{"specific image mime", "image/jpeg", "whatever.dat", true},
		{"specific non-image mime", "text/plain", "trap.jpg", false},
		{"generic mime with image extension", "application/octet-stream", "pic.png", true},
		{"generic mime without image extension", "binary/octet-stream", "notes.txt", false},
		{"no mime with image extension", "", "pic.JPG", true},
		{"no mime without extension", "", "pic", false},
		{"mime with parameters", "image/png; charset=binary", "pic", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isImageAsset(tt.contentType, tt.fileName); got != tt.want {
				t.Fatalf("isImageAsset(%q, %q) = %v, want %v", tt.contentType, tt.fileName, got, tt.want)
			}
		})
	}
}
