package cache

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	blobExt       = ".cache"
	indexFilename = "index.json"
)

type indexEntry struct {
	Blob       string    `json:"blob_filename"`
	CreatedAt  time.Time `json:"created_at"`
	TTLSeconds int       `json:"ttl_seconds"`
	DataType   string    `json:"data_type"`
	Namespace  string    `json:"namespace"`
}

// FileBackend persists each entry as one blob file named by a hash of
// the composite key, plus a single index file. The index is rewritten
// atomically (temp file + rename). On startup the index is repaired:
// records without a blob are dropped and orphan blobs are removed.
type FileBackend struct {
	mu    sync.Mutex
	dir   string
	index map[string]indexEntry
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	b := &FileBackend{dir: dir, index: make(map[string]indexEntry)}
	if err := b.loadAndRepair(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *FileBackend) Name() string { return "file" }

func blobName(key string) string {
	return fmt.Sprintf("%x%s", md5.Sum([]byte(key)), blobExt)
}

func (b *FileBackend) loadAndRepair() error {
	indexPath := filepath.Join(b.dir, indexFilename)
	if data, err := os.ReadFile(indexPath); err == nil {
		if err := json.Unmarshal(data, &b.index); err != nil {
			// Corrupt index: start over, blobs are swept below.
			b.index = make(map[string]indexEntry)
		}
	}

	// Drop index records whose blob vanished.
	for key, rec := range b.index {
		if _, err := os.Stat(filepath.Join(b.dir, rec.Blob)); err != nil {
			delete(b.index, key)
		}
	}

	// Remove blobs the index no longer references.
	referenced := make(map[string]struct{}, len(b.index))
	for _, rec := range b.index {
		referenced[rec.Blob] = struct{}{}
	}
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return err
	}
	for _, de := range entries {
		name := de.Name()
		if !strings.HasSuffix(name, blobExt) {
			continue
		}
		if _, ok := referenced[name]; !ok {
			_ = os.Remove(filepath.Join(b.dir, name))
		}
	}
	return b.writeIndexLocked()
}

// writeIndexLocked rewrites the index atomically. Caller holds b.mu
// (or is the constructor).
func (b *FileBackend) writeIndexLocked() error {
	data, err := json.MarshalIndent(b.index, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(b.dir, "index-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, filepath.Join(b.dir, indexFilename))
}

func (b *FileBackend) Get(_ context.Context, key string) (*Entry, bool, error) {
	b.mu.Lock()
	rec, ok := b.index[key]
	b.mu.Unlock()
	if !ok {
		return nil, false, nil
	}

	payload, err := os.ReadFile(filepath.Join(b.dir, rec.Blob))
	if err != nil {
		// Blob lost out from under the index; heal lazily.
		b.mu.Lock()
		delete(b.index, key)
		_ = b.writeIndexLocked()
		b.mu.Unlock()
		return nil, false, nil
	}
	return &Entry{
		Key:        key,
		Payload:    payload,
		CreatedAt:  rec.CreatedAt,
		TTLSeconds: rec.TTLSeconds,
		DataType:   rec.DataType,
		Namespace:  rec.Namespace,
	}, true, nil
}

func (b *FileBackend) Set(_ context.Context, entry *Entry) error {
	blob := blobName(entry.Key)
	if err := os.WriteFile(filepath.Join(b.dir, blob), entry.Payload, 0644); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.index[entry.Key] = indexEntry{
		Blob:       blob,
		CreatedAt:  entry.CreatedAt,
		TTLSeconds: entry.TTLSeconds,
		DataType:   entry.DataType,
		Namespace:  entry.Namespace,
	}
	return b.writeIndexLocked()
}

func (b *FileBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.index[key]
	if !ok {
		return nil
	}
	delete(b.index, key)
	_ = os.Remove(filepath.Join(b.dir, rec.Blob))
	return b.writeIndexLocked()
}

func (b *FileBackend) Keys(_ context.Context, pattern string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.index))
	for key := range b.index {
		if matchPattern(pattern, key) {
			out = append(out, key)
		}
	}
	return out, nil
}

func (b *FileBackend) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, rec := range b.index {
		_ = os.Remove(filepath.Join(b.dir, rec.Blob))
		delete(b.index, key)
	}
	return b.writeIndexLocked()
}

func (b *FileBackend) Stats(_ context.Context) BackendStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	var size int64
	for _, rec := range b.index {
		if info, err := os.Stat(filepath.Join(b.dir, rec.Blob)); err == nil {
			size += info.Size()
		}
	}
	return BackendStats{Backend: "file", Entries: len(b.index), SizeBytes: size}
}
