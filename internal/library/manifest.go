package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

const (
	// ManifestVersion is the current schema version
	ManifestVersion = 1

	// ManifestFilename is the default manifest filename
	ManifestFilename = "manifest.json"
)

// Manifest stores the sync state of every served page. It is shared between
// processes through the base directory; only the sync leader writes it.
type Manifest struct {
	Version  int                  `json:"version"`
	LastSync time.Time            `json:"last_sync"`
	Pages    map[string]PageState `json:"pages"`
	mu       sync.RWMutex         `json:"-"`
}

// PageState is the last known state of one page.
type PageState struct {
	Source      string    `json:"source"`
	ContentHash string    `json:"content_hash"`
	FetchedAt   time.Time `json:"fetched_at"`
	IndexedAt   time.Time `json:"indexed_at"`
	EntryCount  int       `json:"entry_count"`
	Error       string    `json:"error,omitempty"`
}

// NewManifest creates a new empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		Version: ManifestVersion,
		Pages:   make(map[string]PageState),
	}
}

// LoadManifest reads a manifest from disk, or creates a new one if it doesn't exist.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewManifest(), nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if manifest.Pages == nil {
		manifest.Pages = make(map[string]PageState)
	}
	return &manifest, nil
}

// Save writes the manifest to disk atomically via a temp file and rename.
func (m *Manifest) Save(path string) error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename manifest file: %w", err)
	}
	return nil
}

// Reload replaces the in-memory state with the file at path. Followers call
// it after the leader finished a sync.
func (m *Manifest) Reload(path string) error {
	loaded, err := LoadManifest(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Version = loaded.Version
	m.LastSync = loaded.LastSync
	m.Pages = loaded.Pages
	return nil
}

// PageState returns a copy of the state for a page; the zero state if the
// page is unknown.
func (m *Manifest) PageState(pageID string) PageState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Pages[pageID]
}

// SetPageState updates the state for a page.
func (m *Manifest) SetPageState(pageID string, state PageState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Pages[pageID] = state
}

// HasPage returns true if the page exists in the manifest.
func (m *Manifest) HasPage(pageID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.Pages[pageID]
	return ok
}

// PageIDs returns the sorted IDs of all pages in the manifest.
func (m *Manifest) PageIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.Pages))
	for id := range m.Pages {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// RemoveStalePages removes pages not in ids and returns the removed IDs,
// sorted.
func (m *Manifest) RemoveStalePages(ids []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []string
	for id := range m.Pages {
		if !slices.Contains(ids, id) {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		delete(m.Pages, id)
	}
	slices.Sort(removed)
	return removed
}

// UpdateLastSync updates the last sync timestamp.
func (m *Manifest) UpdateLastSync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastSync = time.Now()
}

// LastSyncTime returns the last sync timestamp.
func (m *Manifest) LastSyncTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastSync
}

// PagesWithErrors returns the error message of every failing page.
func (m *Manifest) PagesWithErrors() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]string)
	for id, state := range m.Pages {
		if state.Error != "" {
			result[id] = state.Error
		}
	}
	return result
}

// SetPageError records err for a page, keeping the rest of its state.
func (m *Manifest) SetPageError(pageID, source, err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.Pages[pageID]
	state.Source = source
	state.Error = err
	m.Pages[pageID] = state
}

// ClearPageError clears the error for a page.
func (m *Manifest) ClearPageError(pageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.Pages[pageID]; ok {
		state.Error = ""
		m.Pages[pageID] = state
	}
}
