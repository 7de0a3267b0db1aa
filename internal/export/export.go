// Package export downloads a user's gallery and packs it into a zip archive.
package export

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"personastudio/internal/domain"
	"personastudio/internal/infra"
	"personastudio/internal/storage"
	"personastudio/pkg/zip"
)

const (
	DefaultLimit       = 100
	DefaultConcurrency = 4
	pageSize           = 50
)

// ErrEmpty is returned when the gallery has no generations or none of their
// images could be downloaded.
var ErrEmpty = errors.New("export: no images to export")

// Lister pages through the caller's gallery.
type Lister interface {
	List(ctx context.Context, pageSize int, cursor string) (*domain.GenerationPage, error)
}

type Options struct {
	Limit       int
	Concurrency int
	Logger      *infra.Logger
}

// Result is a finished archive and how many images it holds.
type Result struct {
	Archive  []byte
	Included int
	Skipped  int
}

// Gallery collects up to opts.Limit generations and downloads their images
// with bounded concurrency. An image that cannot be fetched is skipped.
func Gallery(ctx context.Context, l Lister, f storage.Fetcher, opts Options) (*Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger := infra.LoggerOrDiscard(opts.Logger)

	items, err := Collect(ctx, l, limit)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmpty
	}

	var (
		mu     sync.Mutex
		assets = make([]zip.Asset, 0, len(items))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, item := range items {
		g.Go(func() error {
			data, mediaType, err := f.FetchImage(gctx, item.ImageURL)
			if err != nil {
				logger.Warn().Err(err).Str("generation_id", item.ID).Msg("export: skipping image")
				return nil
			}
			asset := zip.Asset{
				Filename: item.ID + storage.ExtensionFor(mediaType),
				MIME:     mediaType,
				Data:     data,
			}
			if ts, err := time.Parse(time.RFC3339, item.CreatedAt); err == nil {
				asset.Modified = ts
			}
			mu.Lock()
			assets = append(assets, asset)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, ErrEmpty
	}

	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		return nil, err
	}
	return &Result{Archive: archive, Included: len(assets), Skipped: len(items) - len(assets)}, nil
}

// Collect follows the gallery cursor until limit items are gathered or the
// listing ends.
func Collect(ctx context.Context, l Lister, limit int) ([]domain.Generation, error) {
	var (
		out    []domain.Generation
		cursor string
	)
	for len(out) < limit {
		page, err := l.List(ctx, min(pageSize, limit-len(out)), cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.NextCursor == "" || len(page.Items) == 0 {
			break
		}
		cursor = page.NextCursor
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Filename is the archive name for an export taken at t.
func Filename(t time.Time) string {
	return "generations-" + t.UTC().Format("20060102") + ".zip"
}
