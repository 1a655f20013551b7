package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lensvault/lensvault/config"
	"github.com/lensvault/lensvault/core/record"
	"github.com/lensvault/lensvault/errs"
	"github.com/lensvault/lensvault/pkg/resolver"
)

const liveHash = "ab12cd34ef56ab78cd90ef12ab34cd56"
const goneHash = "99999999999999999999999999999999"

// fakeUpstream mimics the lens platform plus the snapshot availability
// service: one live lens with unlock data, one lens that only survives in the
// archive, and a creator listing.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/lens/"+liveHash, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page(`{
			"lensDisplayInfo": {
				"scannableUuid": "`+liveHash+`",
				"lensName": "Rainbow",
				"lensCreatorDisplayName": "Alice",
				"lensCreatorUsername": "alice",
				"iconUrl": "https://cdn.example.com/icon.png"
			},
			"unlockInfo": {
				"lensId": "42",
				"lensUrl": "https://cdn.example.com/bolt",
				"signature": "sig",
				"sha256": "digest",
				"lastUpdated": 1700000000
			}
		}`))
	})

	mux.HandleFunc("/wayback/available", func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if !strings.Contains(target, goneHash) {
			fmt.Fprint(w, `{"archived_snapshots":{}}`)
			return
		}
		snapshot := "http://" + r.Host + "/snapshot/" + goneHash
		fmt.Fprintf(w, `{"archived_snapshots":{"closest":{"url":%q,"timestamp":"20220601120000","status":"200"}}}`, snapshot)
	})

	mux.HandleFunc("/snapshot/"+goneHash, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page(`{
			"unlockInfo": {
				"lensId": "7",
				"lensUrl": "http://web.archive.org/web/20220601120000/https://cdn.example.com/archived-bolt",
				"signature": "oldsig",
				"sha256": "olddigest"
			},
			"lensDisplayInfo": {"lensName": "Vanished"}
		}`))
	})

	mux.HandleFunc("/creator/lenses/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"lensesList":[{"lensName":"Studio One"},{"lensName":"Studio Two"}]}`)
	})

	return httptest.NewServer(mux)
}

func page(pageProps string) string {
	return `<!DOCTYPE html><html><body>` +
		`<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":` + pageProps + `}}</script>` +
		`</body></html>`
}

func newEngine(t *testing.T, srv *httptest.Server) *resolver.Engine {
	t.Helper()
	cfg := config.Apply(config.Default(),
		config.WithMinRequestDelay(0),
		config.WithFailedRequestDelay(time.Millisecond),
		config.WithMaxRequestRetries(0),
		config.WithCacheGCInterval(0),
		config.WithEndpoints(config.EndpointSettings{
			LensBase:            srv.URL + "/lens/",
			ProfileBase:         srv.URL + "/add/",
			CreatorList:         srv.URL + "/creator/lenses/",
			Search:              srv.URL + "/explore/",
			CategoryBase:        srv.URL + "/",
			UnlockBase:          srv.URL + "/unlock/?type=SNAPCODE&uuid=",
			ArchiveAvailability: srv.URL + "/wayback/available",
		}))
	engine := resolver.New(cfg)
	t.Cleanup(engine.Close)
	return engine
}

func TestLiveResolutionAssemblesFullRecord(t *testing.T) {
	srv := fakeUpstream(t)
	defer srv.Close()
	engine := newEngine(t, srv)
	ctx := context.Background()

	rec, err := engine.ByHash(ctx, liveHash)
	require.NoError(t, err)

	unlock, err := engine.UnlockByHash(ctx, liveHash)
	require.NoError(t, err)
	rec = record.Merge(rec, unlock)

	require.Equal(t, liveHash, rec.UUID)
	require.Equal(t, "Rainbow", rec.LensName)
	require.Equal(t, "alice", rec.UserName)
	require.Equal(t, "https://cdn.example.com/bolt", rec.LensURL)
	require.Equal(t, "sig", rec.Signature)
	require.Equal(t, "digest", rec.SHA256)
	require.Equal(t, int64(1700000000000), *rec.LastUpdated)
}

func TestVanishedLensFallsBackToArchive(t *testing.T) {
	srv := fakeUpstream(t)
	defer srv.Close()
	engine := newEngine(t, srv)
	ctx := context.Background()

	_, err := engine.ByHash(ctx, goneHash)
	require.True(t, errs.IsNotFound(err))

	rec, err := engine.ByArchivedSnapshot(ctx, goneHash)
	require.NoError(t, err)
	require.Equal(t, goneHash, rec.UUID)
	require.Equal(t, "Vanished", rec.LensName)
	// The artifact url points at the original domain, not the archive mirror.
	require.Equal(t, "https://cdn.example.com/archived-bolt", rec.LensURL)
	require.Equal(t, "oldsig", rec.Signature)
}

func TestUnknownLensYieldsTypedFailures(t *testing.T) {
	srv := fakeUpstream(t)
	defer srv.Close()
	engine := newEngine(t, srv)
	ctx := context.Background()

	const unknown = "00000000000000000000000000000000"
	_, err := engine.ByHash(ctx, unknown)
	require.True(t, errs.IsNotFound(err))

	rec, err := engine.ByArchivedSnapshot(ctx, unknown)
	require.True(t, rec.Empty())
	require.Equal(t, errs.CodeAggregate, errs.CodeOf(err))
}

func TestCreatorListingAlongsideLiveResolution(t *testing.T) {
	srv := fakeUpstream(t)
	defer srv.Close()
	engine := newEngine(t, srv)

	records, err := engine.ByCreator(context.Background(), "alice-studio", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "Studio One", records[0].LensName)
}
