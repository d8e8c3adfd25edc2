package syncer

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Collection identifies one remote container whose assets are synchronized
// together.
type Collection struct {
	Key    string `yaml:"key"`
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// Config holds everything a sync run needs beyond the remote credentials,
// which pkg/s3 reads on its own.
type Config struct {
	StoreRoot     string
	ThresholdDays int
	Concurrency   int
	Collections   []Collection
	NATSURL       string
	ListenAddr    string
}

var collectionKeyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Load reads configuration from the environment and the collections file.
//
// Required environment variables:
//   - PHOTOSYNC_STORE_ROOT: root directory of the local content store.
//   - PHOTOSYNC_CONFIG: path to the YAML collections file.
//
// Optional environment variables:
//   - PHOTOSYNC_THRESHOLD_DAYS (default 90): retention threshold.
//   - PHOTOSYNC_CONCURRENCY (default 2): collections synced in parallel.
//   - PHOTOSYNC_LISTEN (default ":8080"): status server address.
//   - NATS_URL: enables sync event publishing when set.
func Load() (Config, error) {
	cfg := Config{
		StoreRoot:  os.Getenv("PHOTOSYNC_STORE_ROOT"),
		NATSURL:    os.Getenv("NATS_URL"),
		ListenAddr: getEnv("PHOTOSYNC_LISTEN", ":8080"),
	}
	if cfg.StoreRoot == "" {
		return Config{}, fmt.Errorf("PHOTOSYNC_STORE_ROOT is required")
	}

	cfg.ThresholdDays = getEnvInt("PHOTOSYNC_THRESHOLD_DAYS", 90)
	if cfg.ThresholdDays < 0 {
		return Config{}, fmt.Errorf("PHOTOSYNC_THRESHOLD_DAYS must not be negative")
	}
	cfg.Concurrency = getEnvInt("PHOTOSYNC_CONCURRENCY", 2)
	if cfg.Concurrency < 1 {
		return Config{}, fmt.Errorf("PHOTOSYNC_CONCURRENCY must be at least 1")
	}

	path := os.Getenv("PHOTOSYNC_CONFIG")
	if path == "" {
		return Config{}, fmt.Errorf("PHOTOSYNC_CONFIG is required")
	}
	collections, err := LoadCollectionsFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg.Collections = collections

	return cfg, nil
}

// LoadCollectionsFile parses the YAML collections file and validates every
// entry. Collection keys double as directory names in the content store, so
// they are restricted to a filesystem-safe alphabet.
func LoadCollectionsFile(path string) ([]Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read collections file: %w", err)
	}

	var doc struct {
		Collections []Collection `yaml:"collections"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse collections file: %w", err)
	}
	if len(doc.Collections) == 0 {
		return nil, fmt.Errorf("collections file %q defines no collections", path)
	}

	seen := make(map[string]struct{}, len(doc.Collections))
	for i, col := range doc.Collections {
		if col.Key == "" {
			return nil, fmt.Errorf("collection %d: key is required", i)
		}
		if !collectionKeyPattern.MatchString(col.Key) {
			return nil, fmt.Errorf("collection %q: key must match %s", col.Key, collectionKeyPattern)
		}
		if col.Bucket == "" {
			return nil, fmt.Errorf("collection %q: bucket is required", col.Key)
		}
		if _, dup := seen[col.Key]; dup {
			return nil, fmt.Errorf("collection %q: duplicate key", col.Key)
		}
		seen[col.Key] = struct{}{}
	}

	return doc.Collections, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
