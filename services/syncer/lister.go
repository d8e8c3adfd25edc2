package syncer

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
)

// Lister enumerates the image assets of a collection, paging through the
// remote listing and silently dropping everything that is not an image.
type Lister struct {
	store  ObjectStore
	logger *log.Logger
}

// NewLister creates a Lister over the given remote store.
func NewLister(store ObjectStore, logger *log.Logger) *Lister {
	return &Lister{store: store, logger: logger}
}

// List returns every image asset in the collection. MIME type decides the
// filter when the remote store recorded a specific one; absent or generic
// content types fall back to a filename-extension match. Any listing
// failure is fatal for the collection: no partial results are returned.
func (l *Lister) List(ctx context.Context, col Collection) ([]RemoteAsset, error) {
	objects, err := l.store.ListObjects(ctx, col.Bucket, col.Prefix)
	if err != nil {
		return nil, fmt.Errorf("list collection %s: %w", col.Key, err)
	}

	assets := make([]RemoteAsset, 0, len(objects))
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") || obj.Size == 0 {
			continue
		}

		name := path.Base(obj.Key)
		contentType, err := l.store.HeadContentType(ctx, col.Bucket, obj.Key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Filtering falls back to the extension below.
			if l.logger != nil {
				l.logger.Printf("WARN: content type lookup failed for %s/%s: %v", col.Bucket, obj.Key, err)
			}
			contentType = ""
		}

		if !isImageAsset(contentType, name) {
			continue
		}

		assets = append(assets, RemoteAsset{
			ID:          obj.Key,
			DisplayName: name,
			MIMEType:    contentType,
			Size:        obj.Size,
			CreatedAt:   obj.LastModified,
			ModifiedAt:  obj.LastModified,
		})
	}

	return assets, nil
}

// isImageAsset applies the MIME-first, extension-fallback image filter.
func isImageAsset(contentType, name string) bool {
	ct := normalizeMIME(contentType)
	switch ct {
	case "", "application/octet-stream", "binary/octet-stream":
		_, ok := imageExtensions[strings.ToLower(path.Ext(name))]
		return ok
	default:
		return strings.HasPrefix(ct, "image/")
	}
}
