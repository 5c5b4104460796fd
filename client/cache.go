package client

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// CacheEntry maps a workbook hash to the session created from it.
type CacheEntry struct {
	SessionID string `json:"session_id"`
	Revision  int    `json:"revision"`
	Bytes     int64  `json:"bytes"`
	Filename  string `json:"filename"`
}

// cacheData is the on-disk JSON structure.
type cacheData struct {
	Version  int                   `json:"v"`
	Sessions map[string]CacheEntry `json:"sessions"`
}

// SessionCache persists hash→session mappings on disk.
// If no writable directory is found, it operates in-memory only.
type SessionCache struct {
	mu       sync.Mutex
	dir      string // empty string = in-memory only
	data     cacheData
	inMemory map[string]CacheEntry
}

// NewSessionCache probes for a writable cache directory using the cascade:
//  1. $TMPDIR/gridcmd/ (or os.TempDir()/gridcmd/)
//  2. .gridcmd/ in cwd
//  3. in-memory only (no persistence)
func NewSessionCache() *SessionCache {
	sc := &SessionCache{
		inMemory: make(map[string]CacheEntry),
	}

	if dir := filepath.Join(os.TempDir(), "gridcmd"); probeWritable(dir) {
		sc.dir = dir
		sc.load()
		return sc
	}

	if cwd, err := os.Getwd(); err == nil {
		if dir := filepath.Join(cwd, ".gridcmd"); probeWritable(dir) {
			sc.dir = dir
			sc.load()
			return sc
		}
	}

	return sc
}

// Get looks up a cache entry by workbook hash key.
func (sc *SessionCache) Get(key string) (CacheEntry, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.dir != "" {
		e, ok := sc.data.Sessions[key]
		return e, ok
	}
	e, ok := sc.inMemory[key]
	return e, ok
}

// Put stores a cache entry and persists to disk if possible.
func (sc *SessionCache) Put(key string, entry CacheEntry) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.dir != "" {
		sc.data.Sessions[key] = entry
		sc.save()
	} else {
		sc.inMemory[key] = entry
	}
}

// Evict removes a cache entry (e.g. after a 404).
func (sc *SessionCache) Evict(key string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.dir != "" {
		delete(sc.data.Sessions, key)
		sc.save()
	} else {
		delete(sc.inMemory, key)
	}
}

// HashFile computes the cache key for a local workbook:
// "sha256:<hex>@<baseURL>#<sheet>".
func HashFile(filePath, baseURL, sheet string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("opening file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file: %w", err)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)) + "@" + baseURL + "#" + sheet, nil
}

func (sc *SessionCache) load() {
	raw, err := os.ReadFile(filepath.Join(sc.dir, "sessions.json"))
	if err == nil {
		err = json.Unmarshal(raw, &sc.data)
	}
	if err != nil || sc.data.Version != 1 {
		sc.data = cacheData{Version: 1}
	}
	if sc.data.Sessions == nil {
		sc.data.Sessions = make(map[string]CacheEntry)
	}
}

func (sc *SessionCache) save() {
	if sc.dir == "" {
		return
	}
	_ = os.MkdirAll(sc.dir, 0o755)
	raw, err := json.MarshalIndent(sc.data, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(sc.dir, "sessions.json"), raw, 0o644)
}

// probeWritable tries to create the directory and write a probe file.
func probeWritable(dir string) bool {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	probe := filepath.Join(dir, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return false
	}
	os.Remove(probe)
	return true
}
