// Package docs serves the console's help pages. Pages are markdown shipped
// inside the binary; a configured override directory can shadow them on disk,
// and edits there are picked up live.
package docs

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"
)

//go:embed pages/*.md
var embedded embed.FS

// renderer escapes raw HTML in the source (WithUnsafe is not set), so page
// content cannot inject markup even when overridden from disk.
var renderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// navOrder pins the well-known pages to the front of List. Extra pages from
// the override directory sort alphabetically after them.
var navOrder = []string{"getting-started", "api-tokens", "mcp-tools"}

// Page is one rendered help page.
type Page struct {
	Slug  string
	Title string
	HTML  template.HTML
}

// Library holds the rendered pages and keeps the override directory fresh.
type Library struct {
	logger      *zap.Logger
	overrideDir string

	watcher *fsnotify.Watcher

	mu       sync.RWMutex
	pages    map[string]Page
	shipped  map[string]Page // pristine embedded copies, for restore on override removal
	resolved map[string]bool // slugs currently served from the override dir

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New renders the embedded pages and prepares the optional override
// directory. With a non-empty overrideDir the directory must exist; call
// Start to load it and begin watching.
func New(logger *zap.Logger, overrideDir string) (*Library, error) {
	pages, err := loadEmbedded()
	if err != nil {
		return nil, err
	}

	shipped := make(map[string]Page, len(pages))
	for slug, page := range pages {
		shipped[slug] = page
	}

	ctx, cancel := context.WithCancel(context.Background())
	lib := &Library{
		logger:      logger.Named("docs"),
		overrideDir: overrideDir,
		pages:       pages,
		shipped:     shipped,
		resolved:    make(map[string]bool),
		ctx:         ctx,
		cancel:      cancel,
	}

	if overrideDir != "" {
		info, err := os.Stat(overrideDir)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("docs: cannot access override dir %s: %w", overrideDir, err)
		}
		if !info.IsDir() {
			cancel()
			return nil, fmt.Errorf("docs: %s is not a directory", overrideDir)
		}
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("docs: create watcher: %w", err)
		}
		lib.watcher = watcher
	}

	return lib, nil
}

// Start loads the override directory and begins watching it for edits. It
// is a no-op when no override directory is configured.
func (l *Library) Start() error {
	if l.watcher == nil {
		return nil
	}

	if err := l.watcher.Add(l.overrideDir); err != nil {
		return fmt.Errorf("docs: watch %s: %w", l.overrideDir, err)
	}

	entries, err := os.ReadDir(l.overrideDir)
	if err != nil {
		return fmt.Errorf("docs: read override dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(l.overrideDir, entry.Name())
		if err := l.loadOverride(path); err != nil {
			l.logger.Warn("docs page skipped", zap.String("path", path), zap.Error(err))
		}
	}

	l.wg.Add(1)
	go l.watchLoop()
	return nil
}

// Stop stops the override watcher and waits for it to finish.
func (l *Library) Stop() {
	l.cancel()
	if l.watcher != nil {
		l.watcher.Close()
	}
	l.wg.Wait()
}

// Get returns the page for a slug.
func (l *Library) Get(slug string) (Page, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	page, ok := l.pages[slug]
	return page, ok
}

// List returns all pages in navigation order.
func (l *Library) List() []Page {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Page, 0, len(l.pages))
	for _, page := range l.pages {
		out = append(out, page)
	}
	sort.Slice(out, func(i, j int) bool {
		wi, wj := navWeight(out[i].Slug), navWeight(out[j].Slug)
		if wi != wj {
			return wi < wj
		}
		return out[i].Slug < out[j].Slug
	})
	return out
}

func navWeight(slug string) int {
	for i, s := range navOrder {
		if s == slug {
			return i
		}
	}
	return len(navOrder)
}

func loadEmbedded() (map[string]Page, error) {
	entries, err := fs.ReadDir(embedded, "pages")
	if err != nil {
		return nil, fmt.Errorf("docs: read embedded pages: %w", err)
	}

	pages := make(map[string]Page, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		src, err := fs.ReadFile(embedded, "pages/"+name)
		if err != nil {
			return nil, fmt.Errorf("docs: read %s: %w", name, err)
		}
		slug := strings.TrimSuffix(name, ".md")
		page, err := renderPage(slug, src)
		if err != nil {
			return nil, err
		}
		pages[slug] = page
	}
	return pages, nil
}

// loadOverride renders one file from the override directory into the live set.
func (l *Library) loadOverride(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	slug := strings.TrimSuffix(filepath.Base(path), ".md")
	page, err := renderPage(slug, src)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.pages[slug] = page
	l.resolved[slug] = true
	l.mu.Unlock()

	l.logger.Info("docs page loaded", zap.String("slug", slug), zap.String("path", path))
	return nil
}

// restoreShipped puts the embedded copy back after an override file goes away.
func (l *Library) restoreShipped(slug string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.resolved[slug] {
		return
	}
	delete(l.resolved, slug)
	if page, ok := l.shipped[slug]; ok {
		l.pages[slug] = page
	} else {
		delete(l.pages, slug)
	}
}

func (l *Library) watchLoop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.ctx.Done():
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".md") {
				continue
			}
			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				if err := l.loadOverride(event.Name); err != nil {
					l.logger.Warn("docs page reload failed",
						zap.String("path", event.Name), zap.Error(err))
				}
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				l.restoreShipped(strings.TrimSuffix(filepath.Base(event.Name), ".md"))
			}

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("docs watcher error", zap.Error(err))
		}
	}
}

func renderPage(slug string, src []byte) (Page, error) {
	var buf bytes.Buffer
	if err := renderer.Convert(src, &buf); err != nil {
		return Page{}, fmt.Errorf("docs: render %s: %w", slug, err)
	}
	return Page{
		Slug:  slug,
		Title: pageTitle(slug, src),
		HTML:  template.HTML(buf.String()),
	}, nil
}

// pageTitle takes the first H1, falling back to a de-kebabed slug.
func pageTitle(slug string, src []byte) string {
	for _, line := range strings.Split(string(src), "\n") {
		if title, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return strings.TrimSpace(title)
		}
	}
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
