// Package archive resolves historical page snapshots from a public web
// archive's availability service, bounded to the structurally compatible
// window of the upstream page format.
package archive

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/lensvault/lensvault/config"
	"github.com/lensvault/lensvault/core/record"
	"github.com/lensvault/lensvault/errs"
	"github.com/lensvault/lensvault/internal/extract"
	"github.com/lensvault/lensvault/internal/transport"
)

// archiveTimestampLayout is the archive's 14-digit snapshot timestamp format.
const archiveTimestampLayout = "20060102150405"

// archivePrefixPattern matches the archive-host prefix the snapshot service
// prepends to mirrored URLs. The archive only mirrors HTML, so the prefix must
// be stripped before any field is used to reach binary artifacts.
var archivePrefixPattern = regexp.MustCompile(`^https?://web\.archive\.org/web/[0-9]{1,14}[a-z_]*/`)

// Snapshot locates an archived copy of a page. Transient: consumed immediately
// by the engine, never persisted.
type Snapshot struct {
	URL  string
	Date string
}

// Resolver queries the snapshot-availability service.
type Resolver struct {
	loader   *extract.Loader
	endpoint string
	target   string
	min      time.Time
	max      time.Time
}

// NewResolver constructs a resolver over the shared loader. Malformed window
// thresholds collapse to a zero time, which rejects every snapshot.
func NewResolver(loader *extract.Loader, endpoint string, cfg config.ArchiveSettings) *Resolver {
	min, _ := time.Parse(archiveTimestampLayout, cfg.MinThreshold)
	max, _ := time.Parse(archiveTimestampLayout, cfg.MaxThreshold)
	return &Resolver{
		loader:   loader,
		endpoint: strings.TrimRight(endpoint, "?"),
		target:   cfg.Timestamp,
		min:      min,
		max:      max,
	}
}

// ResolveSnapshot asks the availability service for a snapshot of target near
// the configured timestamp. A missing snapshot, or one outside the validity
// window, yields a not-found failure distinct from transport failures.
func (r *Resolver) ResolveSnapshot(ctx context.Context, target string) (Snapshot, error) {
	query := r.endpoint + "?timestamp=" + url.QueryEscape(r.target) + "&url=" + url.QueryEscape(target)

	closest, err := r.loader.JSONValue(ctx, query, "archived_snapshots.closest", &transport.Options{}) //nolint:exhaustruct
	if err != nil {
		// The service reports "no snapshot" as an empty archived_snapshots
		// object, which surfaces here as a missing property path.
		if errs.CodeOf(err) == errs.CodeJSONStructure {
			return Snapshot{}, errs.New(errs.CodeNotFound,
				errs.WithURL(target),
				errs.WithMessage("no archived snapshot"),
				errs.WithCause(err))
		}
		return Snapshot{}, err
	}

	snapURL := closest.Field("url").Str()
	stamp := strings.TrimSpace(closest.Field("timestamp").Str())
	if snapURL == "" || stamp == "" {
		return Snapshot{}, errs.New(errs.CodeNotFound,
			errs.WithURL(target),
			errs.WithMessage("no archived snapshot"))
	}

	taken, err := time.Parse(archiveTimestampLayout, stamp)
	if err != nil || taken.Before(r.min) || taken.After(r.max) {
		return Snapshot{}, errs.New(errs.CodeNotFound,
			errs.WithURL(target),
			errs.WithMessage("snapshot "+stamp+" outside supported window"))
	}

	parsed, err := url.Parse(snapURL)
	if err != nil || !parsed.IsAbs() {
		return Snapshot{}, errs.New(errs.CodeInvalidURL,
			errs.WithURL(snapURL),
			errs.WithMessage("unparseable snapshot url"),
			errs.WithCause(err))
	}

	return Snapshot{URL: parsed.String(), Date: taken.Format("2006-01-02 15:04:05")}, nil
}

// StripPrefix removes a leading archive-host prefix from s, restoring the
// original domain. Non-archive strings pass through unchanged.
func StripPrefix(s string) string {
	loc := archivePrefixPattern.FindStringIndex(s)
	if loc == nil {
		return s
	}
	rest := s[loc[1]:]
	if !strings.HasPrefix(rest, "http://") && !strings.HasPrefix(rest, "https://") {
		rest = "https://" + rest
	}
	return rest
}

// StripRecord applies StripPrefix to every string field of a record extracted
// from an archived page.
func StripRecord(rec record.LensRecord) record.LensRecord {
	return rec.TransformStrings(StripPrefix)
}
