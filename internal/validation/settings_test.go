package validation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettingsCache(t *testing.T) {
	ctx := context.Background()
	defaults := DocumentSettings{MaxProblems: DEFAULT_MAX_PROBLEMS}

	t.Run("nil fetch function always returns the defaults", func(t *testing.T) {
		cache := NewSettingsCache(defaults, nil)
		assert.Equal(t, defaults, cache.Get(ctx, "file:///a.proto"))
	})

	t.Run("fetched settings are memoized per document", func(t *testing.T) {
		var fetches atomic.Int32
		cache := NewSettingsCache(defaults, func(ctx context.Context, documentKey string) (DocumentSettings, error) {
			fetches.Add(1)
			return DocumentSettings{MaxProblems: 5}, nil
		})

		assert.Equal(t, 5, cache.Get(ctx, "file:///a.proto").MaxProblems)
		assert.Equal(t, 5, cache.Get(ctx, "file:///a.proto").MaxProblems)
		assert.Equal(t, int32(1), fetches.Load())

		//distinct documents fetch independently
		cache.Get(ctx, "file:///b.proto")
		assert.Equal(t, int32(2), fetches.Load())
	})

	t.Run("a failed fetch falls back to the defaults without caching", func(t *testing.T) {
		var fail atomic.Bool
		fail.Store(true)

		cache := NewSettingsCache(defaults, func(ctx context.Context, documentKey string) (DocumentSettings, error) {
			if fail.Load() {
				return DocumentSettings{}, errors.New("host unreachable")
			}
			return DocumentSettings{MaxProblems: 7}, nil
		})

		assert.Equal(t, defaults, cache.Get(ctx, "file:///a.proto"))

		//the next pass retries and succeeds
		fail.Store(false)
		assert.Equal(t, 7, cache.Get(ctx, "file:///a.proto").MaxProblems)
	})

	t.Run("negative caps are clamped to zero", func(t *testing.T) {
		cache := NewSettingsCache(defaults, func(ctx context.Context, documentKey string) (DocumentSettings, error) {
			return DocumentSettings{MaxProblems: -1}, nil
		})
		assert.Equal(t, 0, cache.Get(ctx, "file:///a.proto").MaxProblems)
	})

	t.Run("InvalidateAll clears every entry", func(t *testing.T) {
		var fetches atomic.Int32
		cache := NewSettingsCache(defaults, func(ctx context.Context, documentKey string) (DocumentSettings, error) {
			fetches.Add(1)
			return DocumentSettings{MaxProblems: 5}, nil
		})

		cache.Get(ctx, "file:///a.proto")
		cache.Get(ctx, "file:///b.proto")
		cache.InvalidateAll()
		cache.Get(ctx, "file:///a.proto")
		cache.Get(ctx, "file:///b.proto")

		assert.Equal(t, int32(4), fetches.Load())
	})

	t.Run("Remove only drops one document's entry", func(t *testing.T) {
		var fetches atomic.Int32
		cache := NewSettingsCache(defaults, func(ctx context.Context, documentKey string) (DocumentSettings, error) {
			fetches.Add(1)
			return DocumentSettings{MaxProblems: 5}, nil
		})

		cache.Get(ctx, "file:///a.proto")
		cache.Get(ctx, "file:///b.proto")
		cache.Remove("file:///a.proto")
		cache.Get(ctx, "file:///a.proto")
		cache.Get(ctx, "file:///b.proto")

		assert.Equal(t, int32(3), fetches.Load())
	})
}
