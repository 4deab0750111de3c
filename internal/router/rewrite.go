package router

import (
	"fmt"
	"strings"

	"github.com/adforge/preview/internal/bridge"
	"github.com/adforge/preview/internal/bundle"
)

// Cache policies per content class. HTML can change between loads of the
// same generation (the bridge config may differ), so it is never cached.
// Decoded binaries are immutable within a generation and cache long.
const (
	cacheNone   = "no-store, no-cache, must-revalidate"
	cacheLong   = "public, max-age=31536000, immutable"
	cacheMedium = "public, max-age=3600"
)

// materialize turns a stored bundle file into a virtual-HTTP response:
//
//   - text/html: inject the bridge script generated for the current config,
//     no caching
//   - data-URI content (binary assets): decode and serve with the original
//     content type, long cache lifetime
//   - anything else: verbatim body, stored content type, medium lifetime
func materialize(f bundle.File, cfg Config, gen uint64) (Response, error) {
	switch {
	case isHTML(f.ContentType):
		script := bridge.Generate(cfg.Width, cfg.Height, cfg.Placement)
		return Response{
			Status:       200,
			ContentType:  f.ContentType,
			CacheControl: cacheNone,
			Body:         []byte(bridge.Inject(f.Content, script)),
			Generation:   gen,
			Found:        true,
		}, nil

	case bundle.IsDataURI(f.Content):
		mediaType, data, err := bundle.DecodeDataURI(f.Content)
		if err != nil {
			return Response{}, fmt.Errorf("decode %s: %w", f.Path, err)
		}
		ct := f.ContentType
		if ct == "" {
			ct = mediaType
		}
		return Response{
			Status:       200,
			ContentType:  ct,
			CacheControl: cacheLong,
			Body:         data,
			Generation:   gen,
			Found:        true,
		}, nil

	default:
		return Response{
			Status:       200,
			ContentType:  f.ContentType,
			CacheControl: cacheMedium,
			Body:         []byte(f.Content),
			Generation:   gen,
			Found:        true,
		}, nil
	}
}

func isHTML(contentType string) bool {
	return strings.HasPrefix(contentType, "text/html")
}
