// Package resolver exposes the lensvault resolution engine: every public
// lookup is orchestrated here over the politeness transport, the payload
// cache, the page extractor, and the archive resolver. Operations return the
// best assembled record plus a typed failure rather than blocking or throwing.
package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/lensvault/lensvault/config"
	"github.com/lensvault/lensvault/core/record"
	"github.com/lensvault/lensvault/errs"
	"github.com/lensvault/lensvault/internal/archive"
	"github.com/lensvault/lensvault/internal/cache"
	"github.com/lensvault/lensvault/internal/extract"
	"github.com/lensvault/lensvault/internal/jsontree"
	"github.com/lensvault/lensvault/internal/observability"
	"github.com/lensvault/lensvault/internal/transport"
)

const (
	pathPageProps   = "props.pageProps"
	pathLensDisplay = "props.pageProps.lensDisplayInfo"
	pathUnlockInfo  = "props.pageProps.unlockInfo"
	pathLenses      = "props.pageProps.lenses"
	pathMoreLenses  = "props.pageProps.moreLenses"

	// creatorPageSize is the upstream maximum for the creator listing endpoint.
	creatorPageSize = 100

	// cursorCap bounds distinct cursors per locale so a repeating upstream
	// cannot loop a category crawl forever.
	cursorCap = 50
)

// Engine orchestrates the resolution pipeline. It is stateless across calls
// except for the shared cache and host-pacing maps, both disposed by Close.
type Engine struct {
	cfg     config.Settings
	client  *transport.Client
	cache   *cache.Cache
	loader  *extract.Loader
	archive *archive.Resolver
}

// New constructs an engine from the provided settings.
func New(cfg config.Settings) *Engine {
	client := transport.New(cfg.Transport)
	payloadCache := cache.New(cfg.Cache.TTL, cfg.Cache.GCInterval)
	loader := extract.NewLoader(client, payloadCache)
	return &Engine{
		cfg:     cfg,
		client:  client,
		cache:   payloadCache,
		loader:  loader,
		archive: archive.NewResolver(loader, cfg.Endpoints.ArchiveAvailability, cfg.Archive),
	}
}

// Close cancels the cache janitor and drains cache and pacing state so
// short-lived batch processes exit cleanly.
func (e *Engine) Close() {
	e.cache.Close()
	e.client.Reset()
}

// ByHash resolves the lens published under the given 32-hex hash from its
// canonical live page.
func (e *Engine) ByHash(ctx context.Context, hash string) (record.LensRecord, error) {
	item, err := e.loader.PageValue(ctx, e.lensURL(hash), pathLensDisplay, nil)
	if err != nil {
		return record.LensRecord{}, err
	}
	return record.FromItem(item, hash), nil
}

// UnlockByHash resolves the artifact fields (lens id, artifact url, signature,
// checksum, last update) for the given hash.
func (e *Engine) UnlockByHash(ctx context.Context, hash string) (record.LensRecord, error) {
	item, err := e.loader.PageValue(ctx, e.lensURL(hash), pathUnlockInfo, nil)
	if err != nil {
		return record.LensRecord{}, err
	}
	rec := record.UnlockFromItem(item)
	if rec.UUID == "" {
		rec.UUID = strings.ToLower(strings.TrimSpace(hash))
	}
	return rec, nil
}

// ByUsername lists the lenses published on a user's profile page.
func (e *Engine) ByUsername(ctx context.Context, username string) ([]record.LensRecord, error) {
	pageURL := e.cfg.Endpoints.ProfileBase + url.PathEscape(strings.TrimSpace(username))
	items, err := e.loader.PageValue(ctx, pageURL, pathLenses, nil)
	if err != nil {
		return nil, err
	}
	return recordsFromList(items, ""), nil
}

// MoreByHash lists the additional lenses the canonical page suggests alongside
// the given hash.
func (e *Engine) MoreByHash(ctx context.Context, hash string) ([]record.LensRecord, error) {
	items, err := e.loader.PageValue(ctx, e.lensURL(hash), pathMoreLenses, nil)
	if err != nil {
		return nil, err
	}
	return recordsFromList(items, ""), nil
}

// ByCreator pages through a creator's published lenses in pages of at most
// 100, stopping at a short page or once maxLenses is reached. On a mid-crawl
// failure the records collected so far are returned alongside the failure.
func (e *Engine) ByCreator(ctx context.Context, slug string, maxLenses int) ([]record.LensRecord, error) {
	if maxLenses <= 0 {
		maxLenses = creatorPageSize
	}
	var out []record.LensRecord
	offset := 0
	for len(out) < maxLenses {
		limit := creatorPageSize
		if remaining := maxLenses - len(out); remaining < limit {
			limit = remaining
		}
		pageURL := fmt.Sprintf("%s?limit=%d&offset=%d&order=1&slug=%s",
			e.cfg.Endpoints.CreatorList, limit, offset, url.QueryEscape(slug))
		items, err := e.loader.JSONValue(ctx, pageURL, "lensesList", nil)
		if err != nil {
			return out, err
		}
		out = append(out, recordsFromList(items, "")...)
		if items.Len() < limit {
			break
		}
		offset += items.Len()
	}
	return out, nil
}

// TopByCategory crawls a category listing by opaque cursor, rotating through
// the locale list with a fresh per-session web id whenever the upstream
// repeats a cursor or the per-locale cursor cap is reached. The crawl is
// bounded to one full pass over the locale list.
func (e *Engine) TopByCategory(ctx context.Context, category string, maxLenses int) ([]record.LensRecord, error) {
	locales := e.cfg.Locales
	if len(locales) == 0 {
		locales = []string{"en-US"}
	}

	var out []record.LensRecord
	localeIdx := 0
	webID := uuid.NewString()
	seen := make(map[string]struct{})
	cursor := ""

	for {
		pageURL := e.categoryURL(category, locales[localeIdx], cursor, webID)
		page, err := e.loader.PageValue(ctx, pageURL, pathPageProps, nil)
		if err != nil {
			return out, err
		}
		for _, item := range page.Field("topLenses").Items() {
			out = append(out, record.FromItem(item, ""))
			if maxLenses > 0 && len(out) >= maxLenses {
				return out, nil
			}
		}

		next := page.Field("nextCursorId").Str()
		if next == "" {
			return out, nil
		}
		if _, repeated := seen[next]; repeated || len(seen) >= cursorCap {
			// Stale cached page or a looping upstream: drop the cached page,
			// rotate locale and session id, and continue from the top.
			e.loader.Invalidate(pageURL)
			localeIdx++
			if localeIdx >= len(locales) {
				observability.Log().Info("category crawl exhausted locale rotation",
					observability.Field{Key: "category", Value: category},
					observability.Field{Key: "collected", Value: len(out)})
				return out, nil
			}
			webID = uuid.NewString()
			seen = make(map[string]struct{})
			cursor = ""
			continue
		}
		seen[next] = struct{}{}
		cursor = next
	}
}

// TopLenses crawls every configured category, logging and continuing past
// per-category failures.
func (e *Engine) TopLenses(ctx context.Context, maxPerCategory int) ([]record.LensRecord, error) {
	var out []record.LensRecord
	var failures []error
	for _, category := range e.cfg.Categories {
		records, err := e.TopByCategory(ctx, category, maxPerCategory)
		out = append(out, records...)
		if err != nil {
			observability.Log().Error("category crawl failed",
				observability.Field{Key: "category", Value: category},
				observability.Field{Key: "error", Value: err.Error()})
			failures = append(failures, err)
		}
	}
	if len(out) == 0 && len(failures) > 0 {
		return out, errs.New(errs.CodeAggregate,
			errs.WithMessage("every category crawl failed"),
			errs.WithFailures(failures...))
	}
	return out, nil
}

// Search resolves lenses for a search term. Two upstream response shapes are
// supported; an unknown shape yields an empty list, not a failure.
func (e *Engine) Search(ctx context.Context, term string) ([]record.LensRecord, error) {
	pageURL := e.cfg.Endpoints.Search + url.PathEscape(strings.TrimSpace(term))
	page, err := e.loader.PageValue(ctx, pageURL, pathPageProps, nil)
	if err != nil {
		return nil, err
	}

	// Legacy shape: a key-value map of lens objects.
	if lenses := page.Field("lenses"); lenses.Kind() == jsontree.Object {
		out := make([]record.LensRecord, 0, lenses.Len())
		for _, key := range lenses.Keys() {
			out = append(out, record.FromItem(lenses.Field(key), ""))
		}
		return out, nil
	}

	// Newer shape: a sections array whose title/type identifies the lens section.
	if sections := page.Field("sections"); sections.Kind() == jsontree.Array {
		for _, section := range sections.Items() {
			if section.Field("type").Str() != "LENS" && section.Field("title").Str() != "Lenses" {
				continue
			}
			return recordsFromList(section.Field("items"), ""), nil
		}
	}

	return nil, nil
}

// ByArchivedSnapshot assembles a record from archived snapshots, trying URL
// patterns most-specific first and merging each extraction into the
// accumulator until an artifact URL is known. The collected failures are
// returned as an aggregate only when no artifact URL was ever found.
func (e *Engine) ByArchivedSnapshot(ctx context.Context, hash string) (record.LensRecord, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	patterns := []string{
		e.cfg.Endpoints.UnlockBase + hash,
		e.lensURL(hash),
		e.lensURL(hash) + "*",
	}

	var acc record.LensRecord
	var failures []error
	for _, pattern := range patterns {
		snap, err := e.archive.ResolveSnapshot(ctx, pattern)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		rec, err := e.archivedRecord(ctx, snap.URL, hash)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		acc = record.Merge(rec, acc)
		if acc.LensURL != "" {
			break
		}
	}

	if acc.LensURL == "" && len(failures) > 0 {
		return acc, errs.New(errs.CodeAggregate,
			errs.WithMessage("no archived source yielded an artifact url"),
			errs.WithFailures(failures...))
	}
	return acc, nil
}

// archivedRecord extracts a record from an archived page, preferring the
// unlock payload when the snapshot carries one, and strips archive-host
// prefixes from every field.
func (e *Engine) archivedRecord(ctx context.Context, snapshotURL, hash string) (record.LensRecord, error) {
	if item, err := e.loader.PageValue(ctx, snapshotURL, pathUnlockInfo, nil); err == nil {
		rec := record.UnlockFromItem(item)
		if display, derr := e.loader.PageValue(ctx, snapshotURL, pathLensDisplay, nil); derr == nil {
			rec = record.Merge(rec, record.FromItem(display, hash))
		}
		if rec.UUID == "" {
			rec.UUID = hash
		}
		return archive.StripRecord(rec), nil
	}
	item, err := e.loader.PageValue(ctx, snapshotURL, pathLensDisplay, nil)
	if err != nil {
		return record.LensRecord{}, err
	}
	return archive.StripRecord(record.FromItem(item, hash)), nil
}

func (e *Engine) lensURL(hash string) string {
	return e.cfg.Endpoints.LensBase + strings.ToLower(strings.TrimSpace(hash))
}

func (e *Engine) categoryURL(category, locale, cursor, webID string) string {
	base := strings.TrimRight(e.cfg.Endpoints.CategoryBase, "/")
	u := fmt.Sprintf("%s/%s/lens/category/%s?web_client_id=%s", base, locale, url.PathEscape(category), webID)
	if cursor != "" {
		u += "&cursor_id=" + url.QueryEscape(cursor)
	}
	return u
}

func recordsFromList(items *jsontree.Value, fallbackHash string) []record.LensRecord {
	if items.Len() == 0 {
		return nil
	}
	out := make([]record.LensRecord, 0, items.Len())
	for _, item := range items.Items() {
		out = append(out, record.FromItem(item, fallbackHash))
	}
	return out
}
