package validation

import (
	"context"
	"sync"
)

const DEFAULT_MAX_PROBLEMS = 100

// DocumentSettings is the effective configuration for one open document.
type DocumentSettings struct {
	//Maximum number of findings sent to the suggestion enricher per
	//validation pass. Findings beyond the cap are still published,
	//without a suggestion.
	MaxProblems int `json:"maxNumberOfProblems"`
}

// SettingsFetchFn retrieves the configuration for one document from the
// host, typically through a workspace/configuration round trip.
type SettingsFetchFn func(ctx context.Context, documentKey string) (DocumentSettings, error)

// SettingsCache memoizes per-document configuration. It is shared by all
// documents of a session; a global configuration change invalidates every
// entry at once.
type SettingsCache struct {
	lock     sync.Mutex
	entries  map[string]DocumentSettings
	fetch    SettingsFetchFn //nil when the host does not support per-document configuration
	defaults DocumentSettings
}

func NewSettingsCache(defaults DocumentSettings, fetch SettingsFetchFn) *SettingsCache {
	if defaults.MaxProblems < 0 {
		defaults.MaxProblems = 0
	}
	return &SettingsCache{
		entries:  make(map[string]DocumentSettings),
		fetch:    fetch,
		defaults: defaults,
	}
}

// Get returns the settings for $documentKey, fetching and memoizing them on
// first use. A failed fetch falls back to the defaults without caching, so
// a later pass can retry.
func (c *SettingsCache) Get(ctx context.Context, documentKey string) DocumentSettings {
	if c.fetch == nil {
		return c.defaults
	}

	c.lock.Lock()
	settings, ok := c.entries[documentKey]
	c.lock.Unlock()

	if ok {
		return settings
	}

	settings, err := c.fetch(ctx, documentKey)
	if err != nil {
		return c.defaults
	}
	if settings.MaxProblems < 0 {
		settings.MaxProblems = 0
	}

	c.lock.Lock()
	c.entries[documentKey] = settings
	c.lock.Unlock()

	return settings
}

// InvalidateAll clears every memoized entry. The caller is expected to
// revalidate every open document afterwards.
func (c *SettingsCache) InvalidateAll() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.entries = make(map[string]DocumentSettings)
}

// Remove drops the entry of a closed document.
func (c *SettingsCache) Remove(documentKey string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.entries, documentKey)
}
