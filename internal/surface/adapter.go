package surface

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/adforge/preview/internal/infrastructure/monitoring"
	"github.com/adforge/preview/internal/mraid"
)

// Resolver fetches a script referenced by src from the loaded bundle.
type Resolver func(ctx context.Context, path string) (string, bool)

// AdapterOptions configures an adapter. Sink, Events, Console and Resolver
// are optional.
type AdapterOptions struct {
	Config  mraid.Config
	Sink    mraid.IntentSink
	Events  EventSink
	Console ConsoleSink
	Resolve Resolver
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Adapter owns at most one live surface and swaps it atomically on load.
// A load that is superseded by a newer one finishes quietly and its surface
// is discarded; only the latest load ever reaches the ready transition.
type Adapter struct {
	sink    mraid.IntentSink
	events  EventSink
	console ConsoleSink
	resolve Resolver
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu      sync.Mutex
	seq     uint64
	current *Surface
	cfg     mraid.Config
}

// NewAdapter creates an adapter with no live surface.
func NewAdapter(opts AdapterOptions) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		sink:    opts.Sink,
		events:  opts.Events,
		console: opts.Console,
		resolve: opts.Resolve,
		logger:  logger.Named("adapter"),
		metrics: opts.Metrics,
		cfg:     opts.Config,
	}
}

// SetConfig stores dimensions and placement for subsequent loads. A running
// surface keeps reporting the values it was created with.
func (a *Adapter) SetConfig(cfg mraid.Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
}

// Config returns the dimensions and placement the next load will use.
func (a *Adapter) Config() mraid.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Current returns the live surface, nil when nothing is loaded.
func (a *Adapter) Current() *Surface {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Clear destroys the live surface, if any.
func (a *Adapter) Clear() {
	a.mu.Lock()
	cur := a.current
	a.current = nil
	a.seq++
	a.mu.Unlock()
	if cur != nil {
		cur.Destroy()
	}
}

// Close releases the adapter.
func (a *Adapter) Close() { a.Clear() }

// Load parses the document, replaces the live surface, executes its scripts
// and performs the ready transition. A script error ends the lifecycle with
// an error event instead. Returns the surface that was installed, nil when
// a newer load superseded this one mid-flight.
func (a *Adapter) Load(ctx context.Context, markup string) (*Surface, error) {
	scripts, err := extractScripts(markup)
	if err != nil {
		a.countLoad("parse_error")
		return nil, err
	}

	a.mu.Lock()
	a.seq++
	my := a.seq
	old := a.current
	s := New(Options{
		Config:  a.cfg,
		Sink:    a.sink,
		Events:  a.events,
		Console: a.console,
		Logger:  a.logger,
		Metrics: a.metrics,
	})
	a.current = s
	a.mu.Unlock()
	if old != nil {
		old.Destroy()
	}

	var execErr error
	for _, sc := range scripts {
		body := sc.body
		if sc.path != "" {
			content, ok := a.fetchScript(ctx, sc.path)
			if !ok {
				a.logger.Warn("script source not in bundle", zap.String("src", sc.path))
				continue
			}
			body = content
		}
		if execErr = s.Execute(ctx, sc.name, body); execErr != nil {
			break
		}
	}

	a.mu.Lock()
	stale := a.seq != my || a.current != s
	a.mu.Unlock()
	if stale {
		s.Destroy()
		a.countLoad("superseded")
		return nil, nil
	}

	if execErr != nil {
		s.Fail(execErr.Error())
		a.countLoad("script_error")
		return s, execErr
	}
	s.Start()
	a.countLoad("ok")
	return s, nil
}

func (a *Adapter) fetchScript(ctx context.Context, src string) (string, bool) {
	if a.resolve == nil {
		return "", false
	}
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") || strings.HasPrefix(src, "//") {
		a.logger.Warn("network script skipped", zap.String("src", src))
		return "", false
	}
	return a.resolve(ctx, strings.TrimPrefix(src, "./"))
}

func (a *Adapter) countLoad(outcome string) {
	if a.metrics != nil {
		a.metrics.SurfaceLoads.WithLabelValues(outcome).Inc()
	}
}

// script is one executable unit pulled from the document, in order.
type script struct {
	name string
	path string // src attribute, empty for inline
	body string
}

func extractScripts(markup string) ([]script, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	var out []script
	doc.Find("script").Each(func(i int, sel *goquery.Selection) {
		if t, ok := sel.Attr("type"); ok && !isJavaScript(t) {
			return
		}
		if src, ok := sel.Attr("src"); ok && src != "" {
			out = append(out, script{name: src, path: src})
			return
		}
		body := sel.Text()
		if strings.TrimSpace(body) == "" {
			return
		}
		out = append(out, script{name: fmt.Sprintf("inline-%d", i), body: body})
	})
	return out, nil
}

func isJavaScript(t string) bool {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "", "text/javascript", "application/javascript", "module":
		return true
	}
	return false
}
