// Package pages maps logical page names to the HTML files served to clients.
// Each category carries its own page set; short names used by observers are
// resolved to concrete filenames before a redirect is pushed.
package pages

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrUnknownPage is returned when a redirect names a page outside the
// configured page sets.
var ErrUnknownPage = errors.New("unknown page")

// CategoryPages describes the page set for one session category.
type CategoryPages struct {
	EntryPage   string            `json:"entryPage"`
	LoadingPage string            `json:"loadingPage"`
	Aliases     map[string]string `json:"aliases"`
}

// Resolver resolves observer-facing page names to servable filenames.
type Resolver struct {
	mu         sync.RWMutex
	categories map[string]CategoryPages
	known      map[string]struct{}
}

// defaultCategories covers the built-in page sets. A config file, when
// present, replaces these wholesale.
func defaultCategories() map[string]CategoryPages {
	return map[string]CategoryPages{
		"alpha": {
			EntryPage:   "alphaverify.html",
			LoadingPage: "alphaloading.html",
			Aliases: map[string]string{
				"verify":  "alphaverify.html",
				"loading": "alphaloading.html",
				"confirm": "alphaconfirm.html",
				"done":    "alphadone.html",
			},
		},
		"beta": {
			EntryPage:   "betaverify.html",
			LoadingPage: "betaloading.html",
			Aliases: map[string]string{
				"verify":  "betaverify.html",
				"loading": "betaloading.html",
				"confirm": "betaconfirm.html",
				"done":    "betadone.html",
			},
		},
	}
}

// NewResolver builds a resolver from configPath. A missing file falls back to
// the built-in category set; a malformed file is an error.
func NewResolver(configPath string) (*Resolver, error) {
	categories := defaultCategories()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err == nil {
			loaded := make(map[string]CategoryPages)
			if err := json.Unmarshal(data, &loaded); err != nil {
				return nil, fmt.Errorf("failed to parse page config %s: %w", configPath, err)
			}
			categories = loaded
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read page config %s: %w", configPath, err)
		}
	}

	r := &Resolver{categories: categories}
	r.rebuildKnown()
	return r, nil
}

func (r *Resolver) rebuildKnown() {
	known := make(map[string]struct{})
	for _, cat := range r.categories {
		known[strings.ToLower(cat.EntryPage)] = struct{}{}
		known[strings.ToLower(cat.LoadingPage)] = struct{}{}
		for _, page := range cat.Aliases {
			known[strings.ToLower(page)] = struct{}{}
		}
	}
	r.known = known
}

// Categories lists the configured category names.
func (r *Resolver) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.categories))
	for name := range r.categories {
		names = append(names, name)
	}
	return names
}

// HasCategory reports whether a category is configured.
func (r *Resolver) HasCategory(category string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.categories[strings.ToLower(category)]
	return ok
}

// EntryPage returns the first page for a category.
func (r *Resolver) EntryPage(category string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cat, ok := r.categories[strings.ToLower(category)]; ok {
		return cat.EntryPage
	}
	return ""
}

// LoadingPage returns the interstitial page for a category.
func (r *Resolver) LoadingPage(category string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cat, ok := r.categories[strings.ToLower(category)]; ok {
		return cat.LoadingPage
	}
	return ""
}

// Resolve maps a requested page name to a servable filename for the given
// category. Resolution tries, in order: the category alias table, the alias
// table again with the category prefix stripped, and finally the normalized
// name itself with an .html suffix. Resolution never fails; an unknown name
// passes through so new pages can be served without a config change.
func (r *Resolver) Resolve(category, requested string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	normalized := normalize(requested)
	cat, ok := r.categories[strings.ToLower(category)]
	if !ok {
		return normalized + ".html"
	}

	if page, ok := cat.Aliases[normalized]; ok {
		return page
	}

	prefix := strings.ToLower(category)
	if stripped, found := strings.CutPrefix(normalized, prefix); found {
		if page, ok := cat.Aliases[stripped]; ok {
			return page
		}
	}

	return normalized + ".html"
}

// IsKnown reports whether a filename belongs to any configured category.
// Matching is case-insensitive.
func (r *Resolver) IsKnown(filename string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.known[strings.ToLower(filename)]
	return ok
}

func normalize(requested string) string {
	name := strings.ToLower(strings.TrimSpace(requested))
	name = strings.TrimPrefix(name, "/")
	name = strings.TrimSuffix(name, ".html")
	return name
}
