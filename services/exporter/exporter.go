// Package exporter packages a collection's archive area into a compressed
// bundle for cold-storage offload. The bundle is a tar.zst archive holding a
// YAML manifest followed by the archived image files.
package exporter

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

const (
	manifestFileName = "manifest.yaml"
	archiveTarPrefix = "archive"
)

// Uploader pushes a finished bundle to remote storage, implemented by
// pkg/s3.
type Uploader interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, sha256 string) error
}

// Config configures one export.
type Config struct {
	StoreRoot     string
	CollectionKey string
	Output        string

	// Uploader and UploadBucket are optional; when both are set the bundle
	// is also pushed to remote storage after it is written locally.
	Uploader     Uploader
	UploadBucket string

	Now    func() time.Time
	Stdout io.Writer
}

// Manifest describes the contents of a bundle.
type Manifest struct {
	Version       string         `yaml:"version"`
	CollectionKey string         `yaml:"collection_key"`
	CreatedAt     time.Time      `yaml:"created_at"`
	TotalSize     int64          `yaml:"total_size"`
	Files         []ManifestFile `yaml:"files"`
}

// ManifestFile is a single archived asset within the bundle.
type ManifestFile struct {
	Path   string `yaml:"path"`
	Size   int64  `yaml:"size"`
	SHA256 string `yaml:"sha256"`
}

// Export assembles a bundle from the collection's archive area and writes
// the tar.zst archive to cfg.Output.
func Export(ctx context.Context, cfg Config) (*Manifest, error) {
	if cfg.StoreRoot == "" {
		return nil, errors.New("store root is required")
	}
	if cfg.CollectionKey == "" {
		return nil, errors.New("collection key is required")
	}
	if cfg.Output == "" {
		return nil, errors.New("output path is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	archiveDir := filepath.Join(cfg.StoreRoot, cfg.CollectionKey, "archive")
	info, err := os.Stat(archiveDir)
	if err != nil {
		return nil, fmt.Errorf("stat archive dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("archive dir %q is not a directory", archiveDir)
	}

	files, err := collectFiles(ctx, archiveDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("no archived assets to export")
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	manifest := &Manifest{
		Version:       "1",
		CollectionKey: cfg.CollectionKey,
		CreatedAt:     cfg.Now().UTC().Truncate(time.Second),
		Files:         files,
	}
	for _, f := range files {
		manifest.TotalSize += f.Size
	}

	manifestBytes, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	if err := writeBundle(cfg.Output, manifestBytes, archiveDir, files); err != nil {
		return nil, err
	}

	fmt.Fprintf(cfg.Stdout, "wrote bundle %s (%d archived assets)\n", cfg.Output, len(files))

	if cfg.Uploader != nil && cfg.UploadBucket != "" {
		if err := uploadBundle(ctx, cfg); err != nil {
			return nil, err
		}
		fmt.Fprintf(cfg.Stdout, "uploaded bundle to %s/%s\n", cfg.UploadBucket, filepath.Base(cfg.Output))
	}

	return manifest, nil
}

func collectFiles(ctx context.Context, root string) ([]ManifestFile, error) {
	var files []ManifestFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %q: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		size, sha, err := hashFile(path)
		if err != nil {
			return err
		}

		files = append(files, ManifestFile{
			Path:   rel,
			Size:   size,
			SHA256: sha,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func hashFile(path string) (int64, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, "", fmt.Errorf("open %q: %w", path, err)
	}
	defer file.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, file)
	if err != nil {
		return 0, "", fmt.Errorf("hash %q: %w", path, err)
	}
	return size, hex.EncodeToString(hash.Sum(nil)), nil
}

func writeBundle(output string, manifest []byte, archiveDir string, files []ManifestFile) error {
	dir := filepath.Dir(output)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	tw := tar.NewWriter(zw)

	if err := writeTarEntry(tw, manifestFileName, manifest); err != nil {
		return err
	}

	for _, f := range files {
		src := filepath.Join(archiveDir, filepath.FromSlash(f.Path))
		if err := copyTarFile(tw, archiveTarPrefix+"/"+f.Path, src, f.Size); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar writer: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zstd writer: %w", err)
	}
	return out.Close()
}

func writeTarEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name: name,
		Mode: 0o644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header %q: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write tar entry %q: %w", name, err)
	}
	return nil
}

func copyTarFile(tw *tar.Writer, name, src string, size int64) error {
	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %q: %w", src, err)
	}
	defer file.Close()

	hdr := &tar.Header{
		Name: name,
		Mode: 0o644,
		Size: size,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header %q: %w", name, err)
	}
	if _, err := io.Copy(tw, file); err != nil {
		return fmt.Errorf("write tar entry %q: %w", name, err)
	}
	return nil
}

func uploadBundle(ctx context.Context, cfg Config) error {
	size, sha, err := hashFile(cfg.Output)
	if err != nil {
		return err
	}

	file, err := os.Open(cfg.Output)
	if err != nil {
		return fmt.Errorf("open bundle: %w", err)
	}
	defer file.Close()

	key := filepath.Base(cfg.Output)
	if err := cfg.Uploader.PutObject(ctx, cfg.UploadBucket, key, file, size, sha); err != nil {
		return fmt.Errorf("upload bundle: %w", err)
	}
	return nil
}
