// Package library serves a set of manual pages: it resolves and fetches the
// configured sources, builds a search module per page, keeps a cross-page
// Bleve index and exposes both through MCP tools.
package library

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sha1n/mcp-manual-server/internal/changelog"
	"github.com/sha1n/mcp-manual-server/internal/config"
	"github.com/sha1n/mcp-manual-server/internal/dom"
	"github.com/sha1n/mcp-manual-server/internal/manual"
	"github.com/sha1n/mcp-manual-server/internal/progress"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

const (
	// LockFilename is the name of the sync lock file
	LockFilename = "sync.lock"

	// MaxParallelLoads is the maximum number of pages fetched at once
	MaxParallelLoads = 4
)

var (
	// ErrPageNotFound indicates an unknown page ID.
	ErrPageNotFound = errors.New("page not found")

	// ErrSectionNotFound indicates an unknown section ID on a known page.
	ErrSectionNotFound = errors.New("section not found")

	// ErrNotReady indicates that no index is open for cross-page search.
	ErrNotReady = errors.New("indexes not ready")
)

var titleSel = dom.MustCompile("title")

// PageInfo summarizes a served page.
type PageInfo struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Entries     int       `json:"entries"`
	ContentHash string    `json:"content_hash"`
	FetchedAt   time.Time `json:"fetched_at"`
	Error       string    `json:"error,omitempty"`
}

// SyncReport is the outcome of loading and indexing all pages.
type SyncReport struct {
	Pages     int               `json:"pages"`
	Reindexed []string          `json:"reindexed"`
	Unchanged []string          `json:"unchanged"`
	Removed   []string          `json:"removed"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// JumpResult is the outcome of jumping to a search result.
type JumpResult struct {
	Page    string        `json:"page"`
	Anchor  string        `json:"anchor"`
	Section string        `json:"section"`
	Target  *ScrollTarget `json:"target,omitempty"`
	// SectionHTML is the section markup including live highlights.
	SectionHTML string `json:"section_html,omitempty"`
}

// loadedPage is one fetched page and the search module built over it. It is
// replaced as a whole when the page changes.
type loadedPage struct {
	Page
	title     string
	hash      string
	fetchedAt time.Time
	module    *manual.Module
	viewport  *pageViewport

	// jumpMu pairs a jump with the viewport target it produced.
	jumpMu sync.Mutex
}

type pageSet struct {
	order []string
	byID  map[string]*loadedPage
}

// Service coordinates fetching, per-page search modules and the cross-page
// index.
type Service struct {
	settings   *config.ManualSettings
	fetcher    Fetcher
	indexer    *Indexer
	filter     *SourceFilter
	renderer   *changelog.Renderer
	manifest   *Manifest
	lock       *FileLock
	progress   progress.Reporter
	inputSel   dom.Selector
	resultsSel dom.Selector

	pages  atomic.Pointer[pageSet]
	syncMu sync.Mutex

	alias *Alias
	ready bool
	mu    sync.RWMutex
}

// NewService creates a service and its directory structure. Pages are not
// loaded until Initialize.
func NewService(settings *config.ManualSettings) (*Service, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}

	if err := os.MkdirAll(filepath.Join(settings.BaseDir, "indexes"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create indexes directory: %w", err)
	}

	manifest, err := LoadManifest(filepath.Join(settings.BaseDir, ManifestFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	inputSel, err := optionalSelector(settings.InputSelector)
	if err != nil {
		return nil, fmt.Errorf("invalid input selector: %w", err)
	}
	resultsSel, err := optionalSelector(settings.ResultsSelector)
	if err != nil {
		return nil, fmt.Errorf("invalid results selector: %w", err)
	}

	s := &Service{
		settings: settings,
		fetcher:  NewSourceFetcher(settings.FetchTimeout, settings.MaxPageSize),
		indexer:  NewIndexer(settings.BaseDir),
		filter:   NewSourceFilter(settings.Exclude),
		renderer: changelog.NewRenderer(changelog.RenderOptions{
			ShowTicketIDs: settings.ShowTicketIDs,
		}),
		manifest:   manifest,
		lock:       NewFileLock(filepath.Join(settings.BaseDir, LockFilename)),
		progress:   progress.Nop{},
		inputSel:   inputSel,
		resultsSel: resultsSel,
	}
	s.pages.Store(&pageSet{byID: map[string]*loadedPage{}})
	return s, nil
}

func optionalSelector(selector string) (dom.Selector, error) {
	if selector == "" {
		return nil, nil
	}
	return dom.Compile(selector)
}

// Initialize loads all pages. The process that wins the sync lock also
// rebuilds changed indexes; the others wait for it and reuse its indexes.
func (s *Service) Initialize(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	acquired, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if acquired {
		slog.Info("Acquired sync leader lock, starting sync")
		if _, err := s.sync(ctx); err != nil {
			slog.Error("Sync failed", "error", err)
		}
		if err := s.lock.Unlock(); err != nil {
			slog.Error("Failed to unlock", "error", err)
		}
	} else {
		slog.Info("Another instance is syncing, waiting for completion")
		if err := s.lock.LockWithContext(ctx, s.settings.SyncTimeout); err != nil {
			slog.Warn("Timeout waiting for sync, using existing indexes", "error", err)
		} else if err := s.lock.Unlock(); err != nil {
			slog.Error("Failed to unlock", "error", err)
		}

		if err := s.manifest.Reload(s.manifestPath()); err != nil {
			slog.Error("Failed to reload manifest", "error", err)
		}
		set, report := s.load(ctx)
		s.swap(set)
		if len(report.Failed) > 0 {
			slog.Warn("Some pages failed to load", "failed", len(report.Failed))
		}
	}

	return s.openIndexes()
}

// Refresh reloads every page and rebuilds the indexes of pages whose content
// changed. It waits for the sync lock up to the sync timeout.
func (s *Service) Refresh(ctx context.Context) (*SyncReport, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if err := s.lock.LockWithContext(ctx, s.settings.SyncTimeout); err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			slog.Error("Failed to unlock", "error", err)
		}
	}()

	report, err := s.sync(ctx)
	if oerr := s.openIndexes(); oerr != nil {
		return report, oerr
	}
	return report, err
}

// sync loads all pages, swaps them in, rebuilds changed indexes and saves
// the manifest. The caller holds the sync lock.
func (s *Service) sync(ctx context.Context) (*SyncReport, error) {
	set, report := s.load(ctx)
	s.swap(set)

	// Open indexes cannot be rebuilt.
	s.closeAlias()
	s.index(set, report)

	s.manifest.UpdateLastSync()
	if err := s.manifest.Save(s.manifestPath()); err != nil {
		return report, fmt.Errorf("failed to save manifest: %w", err)
	}

	slog.Info("Sync complete",
		"pages", report.Pages,
		"reindexed", len(report.Reindexed),
		"unchanged", len(report.Unchanged),
		"removed", len(report.Removed),
		"failed", len(report.Failed))

	if len(report.Failed) > 0 {
		return report, fmt.Errorf("%d page(s) failed to sync", len(report.Failed))
	}
	return report, nil
}

// load fetches and parses every resolved page in parallel. A page that fails
// keeps serving its previous version, if any.
func (s *Service) load(ctx context.Context) (*pageSet, *SyncReport) {
	report := &SyncReport{Failed: map[string]string{}}

	pages, err := ResolveSources(s.settings.Sources, s.filter)
	if err != nil {
		slog.Warn("Some manual sources could not be resolved", "error", err)
	}
	feed, feedRaw := s.loadFeed()

	loaded := make([]*loadedPage, len(pages))
	errs := make([]error, len(pages))

	var (
		g    errgroup.Group
		mu   sync.Mutex
		done int
	)
	g.SetLimit(MaxParallelLoads)
	s.progress.Start(len(pages))
	for i, p := range pages {
		g.Go(func() error {
			loaded[i], errs[i] = s.loadPage(ctx, p, feed, feedRaw)

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			s.progress.Update(n, p.ID)
			return nil
		})
	}
	_ = g.Wait()
	s.progress.Finish()

	prev := s.pages.Load()
	set := &pageSet{byID: make(map[string]*loadedPage, len(pages))}
	for i, p := range pages {
		lp := loaded[i]
		if errs[i] != nil {
			slog.Error("Failed to load page", "page", p.ID, "source", p.Source, "error", errs[i])
			report.Failed[p.ID] = errs[i].Error()
			s.manifest.SetPageError(p.ID, p.Source, errs[i].Error())

			old, ok := prev.byID[p.ID]
			if !ok || old.Source != p.Source {
				continue
			}
			lp = old
		}
		set.order = append(set.order, p.ID)
		set.byID[p.ID] = lp
	}
	report.Pages = len(set.order)
	return set, report
}

// loadFeed reads the changelog feed. A broken feed is logged and skipped so
// pages are still served.
func (s *Service) loadFeed() (*changelog.Feed, []byte) {
	if s.settings.Changelog == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.settings.Changelog)
	if err != nil {
		slog.Error("Failed to read changelog", "path", s.settings.Changelog, "error", err)
		return nil, nil
	}
	feed, err := changelog.Parse(data)
	if err != nil {
		slog.Error("Failed to parse changelog", "path", s.settings.Changelog, "error", err)
		return nil, nil
	}
	return feed, data
}

func (s *Service) loadPage(ctx context.Context, p Page, feed *changelog.Feed, feedRaw []byte) (*loadedPage, error) {
	data, err := s.fetcher.Fetch(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	sum := sha256.New()
	sum.Write(data)
	sum.Write(feedRaw)

	doc, err := dom.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}

	if feed != nil {
		n, err := s.renderer.Apply(doc, s.settings.ChangelogContainer, feed)
		if err != nil {
			return nil, fmt.Errorf("failed to apply changelog: %w", err)
		}
		if n > 0 {
			slog.Debug("Applied changelog", "page", p.ID, "releases", n)
		}
	}

	vp := &pageViewport{}
	module, err := manual.New(doc, s.moduleOptions(p.ID, doc, vp))
	if err != nil {
		return nil, fmt.Errorf("failed to build search module: %w", err)
	}

	title := dom.CollapseSpace(dom.Text(dom.Query(doc, titleSel)))
	if title == "" {
		title = p.ID
	}

	return &loadedPage{
		Page:      p,
		title:     title,
		hash:      hex.EncodeToString(sum.Sum(nil)),
		fetchedAt: time.Now(),
		module:    module,
		viewport:  vp,
	}, nil
}

func (s *Service) moduleOptions(pageID string, doc *html.Node, vp *pageViewport) manual.Options {
	m := s.settings
	opts := manual.Options{
		SectionsSelector:   m.SectionsSelector,
		ItemsSelector:      m.ItemsSelector,
		ContentSelector:    m.ContentSelector,
		HighlightTargets:   m.HighlightTargets,
		Viewport:           vp,
		Logger:             slog.Default().With("page", pageID),
		StrongTokenLength:  m.StrongTokenLength,
		HighlightMinLength: m.HighlightMinLength,
		SnippetRadius:      m.SnippetRadius,
		MaxResults:         m.MaxResults,
		DebounceDelay:      m.DebounceDelay,
	}
	if s.inputSel != nil {
		opts.Input = dom.Query(doc, s.inputSel)
	}
	if s.resultsSel != nil {
		opts.Results = dom.Query(doc, s.resultsSel)
	}
	return opts
}

// swap installs set and closes modules that are no longer served.
func (s *Service) swap(set *pageSet) {
	prev := s.pages.Swap(set)
	if prev == nil {
		return
	}
	for id, old := range prev.byID {
		if set.byID[id] != old {
			old.module.Close()
		}
	}
}

// index rebuilds the index of every page whose content hash changed or whose
// index is missing, and drops indexes of pages no longer configured.
func (s *Service) index(set *pageSet, report *SyncReport) {
	report.Removed = s.manifest.RemoveStalePages(set.order)
	for _, id := range report.Removed {
		slog.Info("Removing stale page", "page", id)
		if err := s.indexer.DeleteIndex(id); err != nil {
			slog.Error("Failed to delete index for stale page", "page", id, "error", err)
		}
	}

	for _, id := range set.order {
		if _, failed := report.Failed[id]; failed {
			continue
		}
		lp := set.byID[id]
		state := s.manifest.PageState(id)

		if state.ContentHash == lp.hash && s.indexer.IndexExists(id) {
			state.Source = lp.Source
			state.FetchedAt = lp.fetchedAt
			state.Error = ""
			s.manifest.SetPageState(id, state)
			report.Unchanged = append(report.Unchanged, id)
			continue
		}

		count, err := s.indexer.FullIndex(id, Documents(id, lp.module.Entries()))
		if err != nil {
			slog.Error("Failed to index page", "page", id, "error", err)
			report.Failed[id] = err.Error()
			s.manifest.SetPageError(id, lp.Source, err.Error())
			continue
		}

		s.manifest.SetPageState(id, PageState{
			Source:      lp.Source,
			ContentHash: lp.hash,
			FetchedAt:   lp.fetchedAt,
			IndexedAt:   time.Now(),
			EntryCount:  count,
		})
		report.Reindexed = append(report.Reindexed, id)
		slog.Info("Indexed page", "page", id, "entries", count)
	}
}

// openIndexes opens the indexes of all served pages as one alias.
func (s *Service) openIndexes() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, id := range s.pages.Load().order {
		if s.indexer.IndexExists(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		slog.Warn("No indexes available")
		s.ready = false
		return nil
	}

	alias, err := s.indexer.CreateAlias(ids)
	if err != nil {
		return fmt.Errorf("failed to create index alias: %w", err)
	}
	s.alias = alias
	s.ready = true
	slog.Info("Indexes ready", "count", len(ids))
	return nil
}

func (s *Service) closeAlias() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alias != nil {
		if err := s.alias.Close(); err != nil {
			slog.Error("Failed to close index alias", "error", err)
		}
		s.alias = nil
	}
	s.ready = false
}

func (s *Service) manifestPath() string {
	return filepath.Join(s.settings.BaseDir, ManifestFilename)
}

func (s *Service) lookup(pageID string) (*loadedPage, error) {
	lp, ok := s.pages.Load().byID[pageID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, pageID)
	}
	return lp, nil
}

// Pages returns the served pages in source order.
func (s *Service) Pages() []PageInfo {
	set := s.pages.Load()
	infos := make([]PageInfo, 0, len(set.order))
	for _, id := range set.order {
		lp := set.byID[id]
		infos = append(infos, PageInfo{
			ID:          id,
			Source:      lp.Source,
			Title:       lp.title,
			Entries:     len(lp.module.Entries()),
			ContentHash: lp.hash,
			FetchedAt:   lp.fetchedAt,
			Error:       s.manifest.PageState(id).Error,
		})
	}
	return infos
}

// Search runs a page's in-page search and renders its results panel.
func (s *Service) Search(pageID, query string) ([]manual.Result, error) {
	lp, err := s.lookup(pageID)
	if err != nil {
		return nil, err
	}
	return lp.module.Search(query), nil
}

// Input feeds typed text to a page's debounced search.
func (s *Service) Input(pageID, value string) error {
	lp, err := s.lookup(pageID)
	if err != nil {
		return err
	}
	lp.module.Input(value)
	return nil
}

// JumpTo highlights the result's section with the last query and reports
// where the page scrolled.
func (s *Service) JumpTo(pageID, anchorID, sectionHash string) (*JumpResult, error) {
	lp, err := s.lookup(pageID)
	if err != nil {
		return nil, err
	}

	res := &JumpResult{Page: pageID, Anchor: anchorID, Section: sectionHash}
	lp.jumpMu.Lock()
	if lp.module.JumpTo(anchorID, sectionHash) != nil {
		res.Target = lp.viewport.Last()
	}
	lp.jumpMu.Unlock()

	sectionID := strings.TrimPrefix(strings.TrimSpace(sectionHash), "#")
	if sectionID != "" {
		res.SectionHTML, _ = lp.module.Section(sectionID)
	}
	return res, nil
}

// ClearSearch resets a page's search state and highlights.
func (s *Service) ClearSearch(pageID string) error {
	lp, err := s.lookup(pageID)
	if err != nil {
		return err
	}
	lp.module.ClearSearch()
	return nil
}

// ReadSection returns the markup of an element on a page, with current
// highlights.
func (s *Service) ReadSection(pageID, sectionID string) (string, error) {
	lp, err := s.lookup(pageID)
	if err != nil {
		return "", err
	}
	markup, ok := lp.module.Section(strings.TrimPrefix(sectionID, "#"))
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSectionNotFound, sectionID)
	}
	return markup, nil
}

// ResultsHTML returns a page's rendered results panel and whether it is
// shown.
func (s *Service) ResultsHTML(pageID string) (string, bool, error) {
	lp, err := s.lookup(pageID)
	if err != nil {
		return "", false, err
	}
	return lp.module.ResultsHTML(), lp.module.PanelVisible(), nil
}

// Render writes a page as it currently stands.
func (s *Service) Render(pageID string, w io.Writer) error {
	lp, err := s.lookup(pageID)
	if err != nil {
		return err
	}
	return lp.module.Render(w)
}

// IsReady returns true if indexes are ready for cross-page search.
func (s *Service) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// GetIndexAlias returns the combined index for searching.
func (s *Service) GetIndexAlias() (*Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready || s.alias == nil {
		return nil, ErrNotReady
	}
	return s.alias, nil
}

// GetSettings returns the service settings.
func (s *Service) GetSettings() *config.ManualSettings {
	return s.settings
}

// SetFetcher replaces the page fetcher, for tests.
func (s *Service) SetFetcher(f Fetcher) {
	s.fetcher = f
}

// SetProgress sets the reporter notified while pages load.
func (s *Service) SetProgress(r progress.Reporter) {
	s.progress = r
}

// Close releases the indexes and stops pending searches.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, lp := range s.pages.Load().byID {
		lp.module.Close()
	}

	if s.alias != nil {
		if err := s.alias.Close(); err != nil {
			return fmt.Errorf("failed to close alias: %w", err)
		}
		s.alias = nil
	}
	s.ready = false
	return nil
}
