// Package extract loads upstream pages and pulls values out of the structured
// JSON payload they embed, consulting the TTL cache to avoid redundant fetches.
package extract

import (
	"bytes"
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/lensvault/lensvault/errs"
	"github.com/lensvault/lensvault/internal/cache"
	"github.com/lensvault/lensvault/internal/jsontree"
	"github.com/lensvault/lensvault/internal/transport"
)

// scriptID identifies the single structured-data container embedded in
// upstream HTML pages.
const scriptID = "__NEXT_DATA__"

// diagnosticLimit bounds how much of a payload is echoed into failure messages.
const diagnosticLimit = 2048

// Loader fetches pages and resolves property paths against their decoded payloads.
type Loader struct {
	client *transport.Client
	cache  *cache.Cache
}

// NewLoader constructs a loader over the shared transport and cache.
func NewLoader(client *transport.Client, payloadCache *cache.Cache) *Loader {
	return &Loader{client: client, cache: payloadCache}
}

// PageValue fetches an HTML page, decodes its embedded structured-data block,
// and resolves the property path against it. Decoded payloads are cached by URL.
func (l *Loader) PageValue(ctx context.Context, url, propertyPath string, opts *transport.Options) (*jsontree.Value, error) {
	return l.load(ctx, url, propertyPath, opts, true)
}

// JSONValue is PageValue for endpoints that return bare JSON bodies.
func (l *Loader) JSONValue(ctx context.Context, url, propertyPath string, opts *transport.Options) (*jsontree.Value, error) {
	return l.load(ctx, url, propertyPath, opts, false)
}

// Invalidate drops the cached payload for url so the next load refetches.
func (l *Loader) Invalidate(url string) {
	l.cache.Delete(url)
}

func (l *Loader) load(ctx context.Context, url, propertyPath string, opts *transport.Options, embedded bool) (*jsontree.Value, error) {
	path, err := jsontree.ParsePath(propertyPath)
	if err != nil {
		return nil, errs.New(errs.CodeJSONStructure,
			errs.WithURL(url),
			errs.WithMessage(err.Error()))
	}

	if payload, ok := l.cache.Get(url); ok {
		return resolve(payload, path, url)
	}

	body, err := l.client.Fetch(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errs.New(errs.CodeRequest,
			errs.WithURL(url),
			errs.WithMessage("empty response body"))
	}

	raw := body
	if embedded {
		block, found := structuredData(body)
		if !found || strings.TrimSpace(block) == "" {
			return nil, errs.New(errs.CodeJSONStructure,
				errs.WithURL(url),
				errs.WithMessage("structured data block "+scriptID+" not found"))
		}
		raw = []byte(block)
	}

	payload, err := jsontree.Decode(raw)
	if err != nil {
		return nil, errs.New(errs.CodeJSONParse,
			errs.WithURL(url),
			errs.WithMessage("decode payload: "+err.Error()+"; raw: "+truncate(string(raw), diagnosticLimit)),
			errs.WithCause(err))
	}

	l.cache.Set(url, payload)
	return resolve(payload, path, url)
}

func resolve(payload *jsontree.Value, path jsontree.Path, url string) (*jsontree.Value, error) {
	value, err := payload.Resolve(path)
	if err != nil {
		return nil, errs.New(errs.CodeJSONStructure,
			errs.WithURL(url),
			errs.WithMessage(err.Error()+"; payload: "+payload.JSON(diagnosticLimit)),
			errs.WithCause(err))
	}
	return value, nil
}

// structuredData walks the parsed HTML for the fixed script container and
// returns its text content.
func structuredData(body []byte) (string, bool) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	node := findScript(doc)
	if node == nil {
		return "", false
	}
	var b strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			b.WriteString(child.Data)
		}
	}
	return b.String(), true
}

func findScript(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "script" {
		for _, attr := range n.Attr {
			if attr.Key == "id" && attr.Val == scriptID {
				return n
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findScript(child); found != nil {
			return found
		}
	}
	return nil
}

func truncate(s string, limit int) string {
	if limit > 0 && len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
