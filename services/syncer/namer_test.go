package syncer

import (
	"strings"
	"testing"
)

func TestLocalFilenameDeterministic(t *testing.T) {
	a := LocalFilename("Buddy.jpg", "photos/buddy.jpg", "image/jpeg")
	b := LocalFilename("Buddy.jpg", "photos/buddy.jpg", "image/jpeg")
	if a != b {
		t.Fatalf("identical inputs produced %q and %q", a, b)
	}
}

func TestLocalFilenameDistinctIDsNeverCollide(t *testing.T) {
	a := LocalFilename("Buddy", "id1", "image/jpeg")
	b := LocalFilename("Buddy", "id2", "image/jpeg")
	if a == b {
		t.Fatalf("same display name with different ids collided on %q", a)
	}
	if !strings.HasPrefix(a, "Buddy_") || !strings.HasPrefix(b, "Buddy_") {
		t.Fatalf("sanitized base lost: %q, %q", a, b)
	}
}

func TestLocalFilenameSanitization(t *testing.T) {
	tests := []struct {
		name        string
		displayName string
		mimeType    string
		wantBase    string
		wantExt     string
	}{
		{
			name:        "whitespace to underscores",
			displayName: "Best Boy Ever.png",
			mimeType:    "image/png",
			wantBase:    "Best_Boy_Ever",
			wantExt:     ".png",
		},
		{
			name:        "disallowed characters stripped",
			displayName: `pup!@#$%^&()"?.jpg`,
			mimeType:    "image/jpeg",
			wantBase:    "pup",
			wantExt:     ".jpg",
		},
		{
			name:        "empty base falls back to placeholder",
			displayName: "!!!.jpg",
			mimeType:    "image/jpeg",
			wantBase:    "asset",
			wantExt:     ".jpg",
		},
		{
			name:        "extension from mime wins over name",
			displayName: "photo.png",
			mimeType:    "image/webp",
			wantBase:    "photo",
			wantExt:     ".webp",
		},
		{
			name:        "mime with parameters",
			displayName: "photo",
			mimeType:    "image/png; charset=binary",
			wantBase:    "photo",
			wantExt:     ".png",
		},
		{
			name:        "generic mime falls back to name extension",
			displayName: "photo.gif",
			mimeType:    "application/octet-stream",
			wantBase:    "photo",
			wantExt:     ".gif",
		},
		{
			name:        "no mime and no extension defaults",
			displayName: "photo",
			mimeType:    "",
			wantBase:    "photo",
			wantExt:     ".jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LocalFilename(tt.displayName, "some-id", tt.mimeType)
			if !strings.HasPrefix(got, tt.wantBase+"_") {
				t.Fatalf("LocalFilename() = %q, want base %q", got, tt.wantBase)
			}
			if !strings.HasSuffix(got, tt.wantExt) {
				t.Fatalf("LocalFilename() = %q, want extension %q", got, tt.wantExt)
			}
			fingerprint := strings.TrimSuffix(strings.TrimPrefix(got, tt.wantBase+"_"), tt.wantExt)
			if len(fingerprint) != fingerprintLen {
				t.Fatalf("fingerprint %q has length %d, want %d", fingerprint, len(fingerprint), fingerprintLen)
			}
		})
	}
}
