package http

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adforge/preview/internal/bridge"
	"github.com/adforge/preview/internal/bundle"
	"github.com/adforge/preview/internal/infrastructure/config"
	"github.com/adforge/preview/internal/mraid"
	"github.com/adforge/preview/internal/remote"
	"github.com/adforge/preview/internal/router"
	"github.com/adforge/preview/internal/shared/id"
	"github.com/adforge/preview/internal/surface"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	cfg     config.PreviewConfig
	router  *router.Router
	adapter *surface.Adapter
	fetcher *remote.Fetcher
	logger  *zap.Logger

	mu    sync.Mutex
	slot  id.SlotID
	entry string
}

// NewHandlers creates a new handler set.
func NewHandlers(cfg config.PreviewConfig, rt *router.Router, ad *surface.Adapter, fetcher *remote.Fetcher, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		cfg:     cfg,
		router:  rt,
		adapter: ad,
		fetcher: fetcher,
		logger:  logger.Named("api"),
	}
}

type creativeRequest struct {
	Markup    string `json:"markup"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Placement string `json:"placement"`
}

type bundleRequest struct {
	Files     []bundle.File `json:"files"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Placement string        `json:"placement"`
}

type configRequest struct {
	Width     int    `json:"width" binding:"required,gt=0"`
	Height    int    `json:"height" binding:"required,gt=0"`
	Placement string `json:"placement"`
}

type resizeRequest struct {
	Width  int `json:"width" binding:"required,gt=0"`
	Height int `json:"height" binding:"required,gt=0"`
}

// Root handles health check.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "adforge-preview",
	})
}

// Health reports liveness plus the current preview snapshot.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"preview": h.snapshot(),
	})
}

// Status returns the current preview snapshot.
func (h *Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.snapshot())
}

func (h *Handlers) snapshot() gin.H {
	h.mu.Lock()
	slot := h.slot
	entry := h.entry
	h.mu.Unlock()

	cfg := h.adapter.Config()
	snap := gin.H{
		"loaded":    slot != "",
		"slot":      slot,
		"entry":     entry,
		"width":     cfg.Width,
		"height":    cfg.Height,
		"placement": cfg.Placement,
	}
	if s := h.adapter.Current(); s != nil {
		snap["state"] = s.Session().GetState()
		snap["viewable"] = s.Session().IsViewable()
	}
	return snap
}

// LoadCreative replaces the preview with a single pasted document or tag.
// Accepts JSON, or a raw text/html body for curl convenience.
func (h *Handlers) LoadCreative(c *gin.Context) {
	var req creativeRequest
	ct := c.ContentType()
	if strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "text/plain") {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.cfg.MaxBundleBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read body: " + err.Error()})
			return
		}
		req.Markup = string(body)
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Markup) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "markup required"})
		return
	}

	files := []bundle.File{{Path: "index.html", Content: req.Markup, ContentType: "text/html"}}
	h.load(c, files, "index.html", req.Width, req.Height, req.Placement)
}

// LoadBundle replaces the preview with a multi-file creative: either a zip
// archive in the multipart field "bundle", or a JSON file list.
func (h *Handlers) LoadBundle(c *gin.Context) {
	var (
		files []bundle.File
		req   bundleRequest
		err   error
	)

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		files, err = h.bundleFromZip(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.Width = atoiDefault(c.PostForm("width"), 0)
		req.Height = atoiDefault(c.PostForm("height"), 0)
		req.Placement = c.PostForm("placement")
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		files = req.Files
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bundle has no files"})
		return
	}

	entry := bundle.EntryPoint(files)
	h.load(c, files, entry, req.Width, req.Height, req.Placement)
}

func (h *Handlers) bundleFromZip(c *gin.Context) ([]bundle.File, error) {
	fh, err := c.FormFile("bundle")
	if err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.cfg.MaxBundleBytes+1))
	if err != nil {
		return nil, err
	}
	return bundle.FromZip(data, h.cfg.MaxBundleBytes)
}

// load is the shared tail of the three ingestion paths: swap the served
// bundle, then boot a fresh surface on the entry document.
func (h *Handlers) load(c *gin.Context, files []bundle.File, entry string, width, height int, placement string) {
	cfg := h.adapter.Config()
	if width > 0 {
		cfg.Width = width
	}
	if height > 0 {
		cfg.Height = height
	}
	if placement != "" {
		cfg.Placement = mraid.ParsePlacement(placement)
	}

	var markup string
	for _, f := range files {
		if f.Path == entry {
			markup = f.Content
			break
		}
	}
	if markup == "" || bundle.IsDataURI(markup) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "bundle has no loadable entry document"})
		return
	}

	h.adapter.SetConfig(cfg)
	h.router.Replace(files, router.Config{Width: cfg.Width, Height: cfg.Height, Placement: cfg.Placement})

	s, err := h.adapter.Load(c.Request.Context(), markup)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "creative script failed: " + err.Error()})
		return
	}
	if s == nil {
		// A newer load won the race; report as accepted but superseded.
		c.JSON(http.StatusConflict, gin.H{"error": "superseded by a newer load"})
		return
	}

	slot := id.NewSlotID()
	h.mu.Lock()
	h.slot = slot
	h.entry = entry
	h.mu.Unlock()

	h.logger.Info("creative loaded",
		zap.String("slot", string(slot)),
		zap.String("entry", entry),
		zap.Int("files", len(files)))

	c.JSON(http.StatusOK, gin.H{
		"slot":      slot,
		"entry":     entry,
		"files":     len(files),
		"width":     cfg.Width,
		"height":    cfg.Height,
		"placement": cfg.Placement,
		"serveRoot": h.cfg.VirtualRoot,
	})
}

// UpdateConfig changes dimensions and placement for subsequent loads. The
// live surface keeps the geometry it booted with.
func (h *Handlers) UpdateConfig(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := h.adapter.Config()
	cfg.Width = req.Width
	cfg.Height = req.Height
	if req.Placement != "" {
		cfg.Placement = mraid.ParsePlacement(req.Placement)
	}
	h.adapter.SetConfig(cfg)
	h.router.UpdateConfig(router.Config{Width: cfg.Width, Height: cfg.Height, Placement: cfg.Placement})

	c.JSON(http.StatusOK, gin.H{
		"width":     cfg.Width,
		"height":    cfg.Height,
		"placement": cfg.Placement,
	})
}

// Resize informs the live surface of a new container size via sizeChange
// and records the dimensions for the next load.
func (h *Handlers) Resize(c *gin.Context) {
	var req resizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := h.adapter.Config()
	cfg.Width = req.Width
	cfg.Height = req.Height
	h.adapter.SetConfig(cfg)
	h.router.UpdateConfig(router.Config{Width: cfg.Width, Height: cfg.Height, Placement: cfg.Placement})

	notified := false
	if s := h.adapter.Current(); s != nil {
		s.Session().NotifySize(req.Width, req.Height)
		notified = true
	}

	c.JSON(http.StatusOK, gin.H{
		"width":    req.Width,
		"height":   req.Height,
		"notified": notified,
	})
}

// ClearPreview unloads the creative and empties the served bundle.
func (h *Handlers) ClearPreview(c *gin.Context) {
	h.adapter.Clear()
	h.router.Clear()

	h.mu.Lock()
	h.slot = ""
	h.entry = ""
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// LoadRemote fetches an ad tag from its URL and loads it as the creative.
func (h *Handlers) LoadRemote(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url parameter required"})
		return
	}

	tag, err := h.fetcher.Fetch(c.Request.Context(), rawURL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	files := []bundle.File{{Path: "index.html", Content: tag.Markup(), ContentType: "text/html"}}
	h.load(c, files, "index.html", 0, 0, "")
}

// ExportDocument returns the current creative as one standalone HTML
// document with the bridge embedded, suitable for opening from disk.
func (h *Handlers) ExportDocument(c *gin.Context) {
	h.mu.Lock()
	entry := h.entry
	h.mu.Unlock()
	if entry == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "nothing loaded"})
		return
	}

	raw, _, ok := h.router.Raw(c.Request.Context(), entry)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry document missing"})
		return
	}

	cfg := h.adapter.Config()
	script := bridge.Generate(cfg.Width, cfg.Height, cfg.Placement)
	var doc string
	if strings.Contains(strings.ToLower(raw), "<html") {
		doc = bridge.Inject(raw, script)
	} else {
		doc = bridge.Wrap(raw, script, cfg.Width, cfg.Height)
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc))
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
