package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
	"unicode"
)

const (
	fingerprintLen = 10
	fallbackBase   = "asset"
	fallbackExt    = ".jpg"
)

var extByMIME = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/bmp":     ".bmp",
	"image/tiff":    ".tif",
	"image/svg+xml": ".svg",
	"image/heic":    ".heic",
	"image/heif":    ".heif",
	"image/avif":    ".avif",
}

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {},
	".bmp": {}, ".tif": {}, ".tiff": {}, ".svg": {}, ".heic": {},
	".heif": {}, ".avif": {},
}

// LocalFilename derives the deterministic local filename for an asset. The
// display name is sanitized to a filesystem-safe base, a short fingerprint
// of the asset ID keeps identically-named assets apart, and the extension
// comes from the MIME type, then the display name, then a fixed default.
// The same asset ID always yields the same filename across runs; that is
// what makes the fetcher's skip-if-exists check meaningful.
func LocalFilename(displayName, assetID, mimeType string) string {
	base := sanitizeBase(strings.TrimSuffix(displayName, path.Ext(displayName)))
	if base == "" {
		base = fallbackBase
	}

	sum := sha256.Sum256([]byte(assetID))
	fingerprint := hex.EncodeToString(sum[:])[:fingerprintLen]

	return base + "_" + fingerprint + resolveExt(mimeType, displayName)
}

func sanitizeBase(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('_')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), ".")
}

func resolveExt(mimeType, displayName string) string {
	if ext, ok := extByMIME[normalizeMIME(mimeType)]; ok {
		return ext
	}
	if ext := strings.ToLower(path.Ext(displayName)); ext != "" {
		if _, ok := imageExtensions[ext]; ok {
			return ext
		}
	}
	return fallbackExt
}

func normalizeMIME(mimeType string) string {
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}
