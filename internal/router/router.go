// Package router answers virtual-root requests from the in-memory bundle
// store, rewriting HTML responses to carry the protocol bridge.
//
// The router runs as an isolated actor goroutine reachable only through
// messages: full bundle replacement, config-only updates, clear, and
// resolve requests. The latest configuration message is authoritative. A
// resolve racing a generation swap is answered entirely from whichever
// generation was live when the actor picked it up; responses never mix
// entries from two generations.
package router

import (
	"context"

	"go.uber.org/zap"

	"github.com/adforge/preview/internal/bundle"
	"github.com/adforge/preview/internal/infrastructure/monitoring"
	"github.com/adforge/preview/internal/mraid"
)

// Config is the bundle-scoped render configuration carried on messages.
// Last write wins; no history is retained.
type Config struct {
	Width     int
	Height    int
	Placement mraid.Placement
}

type replaceMsg struct {
	files []bundle.File
	cfg   Config
}

type configMsg struct {
	cfg Config
}

type clearMsg struct{}

type resolveReq struct {
	path  string
	raw   bool
	reply chan Response
}

// Response is a materialized virtual-HTTP answer.
type Response struct {
	Status       int
	ContentType  string
	CacheControl string
	Body         []byte
	Generation   uint64
	Found        bool
}

// Router is the request-routing actor. Create with New; it activates
// eagerly so the first page load can already be served.
type Router struct {
	store   *bundle.Store
	cmds    chan any
	lookups chan resolveReq
	done    chan struct{}
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// New starts the router actor with the given default configuration.
// metrics may be nil.
func New(cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		store:   bundle.NewStore(),
		cmds:    make(chan any, 16),
		lookups: make(chan resolveReq),
		done:    make(chan struct{}),
		logger:  logger.Named("router"),
		metrics: metrics,
	}
	go r.run(cfg)
	return r
}

func (r *Router) run(cfg Config) {
	defer close(r.done)
	cleared := true
	for {
		select {
		case msg, ok := <-r.cmds:
			if !ok {
				return
			}
			switch m := msg.(type) {
			case replaceMsg:
				cfg = m.cfg
				cleared = false
				gen := r.store.ReplaceAll(m.files)
				if r.metrics != nil {
					r.metrics.GenerationSwaps.Inc()
					r.metrics.BundleFiles.Set(float64(len(m.files)))
				}
				r.logger.Info("bundle generation replaced",
					zap.Uint64("generation", gen),
					zap.Int("files", len(m.files)),
					zap.Int("width", cfg.Width),
					zap.Int("height", cfg.Height),
				)
			case configMsg:
				// Config updates apply to the live generation only; they
				// never resurrect a cleared store.
				if cleared {
					r.logger.Debug("config update ignored, no live bundle")
					continue
				}
				cfg = m.cfg
				r.logger.Info("bundle config updated",
					zap.Int("width", cfg.Width),
					zap.Int("height", cfg.Height),
				)
			case clearMsg:
				cleared = true
				r.store.Clear()
				if r.metrics != nil {
					r.metrics.BundleFiles.Set(0)
				}
				r.logger.Info("bundle cleared")
			}
		case req := <-r.lookups:
			req.reply <- r.answer(req.path, cfg, req.raw)
		}
	}
}

// Replace sends a full "replace bundle + config" message. The previous
// generation is implicitly invalidated; in-flight requests complete against
// whichever generation was live when they reached the actor.
func (r *Router) Replace(files []bundle.File, cfg Config) {
	r.send(replaceMsg{files: files, cfg: cfg})
}

// UpdateConfig sends a config-only message for the live generation.
func (r *Router) UpdateConfig(cfg Config) {
	r.send(configMsg{cfg: cfg})
}

// Clear drops the live generation.
func (r *Router) Clear() {
	r.send(clearMsg{})
}

func (r *Router) send(msg any) {
	select {
	case r.cmds <- msg:
	case <-r.done:
	}
}

// Resolve answers a virtual-root request with a fully materialized
// response (HTML rewritten, data URIs decoded, cache policy set). The
// context bounds the wait for the actor; cancellation yields not-found.
func (r *Router) Resolve(ctx context.Context, path string) Response {
	return r.ask(ctx, path, false)
}

// Raw returns the stored content for a path without materialization. The
// goja surface uses this to execute bundle scripts and parse bundle HTML
// directly.
func (r *Router) Raw(ctx context.Context, path string) (string, string, bool) {
	resp := r.ask(ctx, path, true)
	return string(resp.Body), resp.ContentType, resp.Found
}

func (r *Router) ask(ctx context.Context, path string, raw bool) Response {
	req := resolveReq{path: path, raw: raw, reply: make(chan Response, 1)}
	select {
	case r.lookups <- req:
	case <-ctx.Done():
		return notFound(0)
	case <-r.done:
		return notFound(0)
	}
	select {
	case resp := <-req.reply:
		return resp
	case <-ctx.Done():
		return notFound(0)
	}
}

// Close terminates the actor. Pending resolves return not-found.
func (r *Router) Close() {
	close(r.cmds)
	<-r.done
}

func (r *Router) answer(path string, cfg Config, raw bool) Response {
	f, ok := r.store.Resolve(path)
	gen := r.store.Generation()
	if !ok {
		if r.metrics != nil {
			r.metrics.BundleRequests.WithLabelValues("miss").Inc()
		}
		r.logger.Debug("bundle path not found", zap.String("path", path), zap.Uint64("generation", gen))
		return notFound(gen)
	}
	if r.metrics != nil {
		r.metrics.BundleRequests.WithLabelValues("hit").Inc()
	}
	if raw {
		return Response{
			Status:      200,
			ContentType: f.ContentType,
			Body:        []byte(f.Content),
			Generation:  gen,
			Found:       true,
		}
	}
	resp, err := materialize(f, cfg, gen)
	if err != nil {
		r.logger.Warn("failed to materialize bundle file",
			zap.String("path", f.Path),
			zap.Error(err),
		)
		return notFound(gen)
	}
	return resp
}

func notFound(gen uint64) Response {
	return Response{
		Status:       404,
		ContentType:  "text/plain; charset=utf-8",
		CacheControl: cacheNone,
		Body:         []byte("Not Found"),
		Generation:   gen,
		Found:        false,
	}
}
