package http

import (
	"archive/zip"
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adforge/preview/internal/infrastructure/config"
	"github.com/adforge/preview/internal/mraid"
	"github.com/adforge/preview/internal/remote"
	"github.com/adforge/preview/internal/router"
	"github.com/adforge/preview/internal/surface"
)

type fixture struct {
	engine  *gin.Engine
	h       *Handlers
	router  *router.Router
	adapter *surface.Adapter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default().Preview
	rt := router.New(router.Config{Width: cfg.Width, Height: cfg.Height, Placement: mraid.ParsePlacement(cfg.Placement)}, nil, nil)
	t.Cleanup(rt.Close)

	ad := surface.NewAdapter(surface.AdapterOptions{
		Config: mraid.Config{Width: cfg.Width, Height: cfg.Height, Placement: mraid.ParsePlacement(cfg.Placement)},
		Resolve: func(ctx context.Context, path string) (string, bool) {
			content, _, ok := rt.Raw(ctx, path)
			return content, ok
		},
	})
	t.Cleanup(ad.Close)

	h := NewHandlers(cfg, rt, ad, remote.NewFetcher(nil), nil)

	engine := gin.New()
	engine.GET("/", h.Root)
	engine.GET("/health", h.Health)
	engine.GET("/preview", h.Status)
	engine.POST("/preview/creative", h.LoadCreative)
	engine.POST("/preview/bundle", h.LoadBundle)
	engine.POST("/preview/config", h.UpdateConfig)
	engine.POST("/preview/resize", h.Resize)
	engine.DELETE("/preview", h.ClearPreview)
	engine.GET("/preview/remote", h.LoadRemote)
	engine.GET("/preview/document", h.ExportDocument)
	engine.GET("/ad/*path", rt.Handler())

	return &fixture{engine: engine, h: h, router: rt, adapter: ad}
}

func (f *fixture) do(method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) settle() {
	if s := f.adapter.Current(); s != nil {
		s.Session().Loop().Flush()
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLoadCreativeJSON(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"markup":"<html><head></head><body><p>hi</p></body></html>"}`)
	rec := f.do(http.MethodPost, "/preview/creative", "application/json", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.True(t, strings.HasPrefix(out["slot"].(string), "slot_"))
	assert.Equal(t, "index.html", out["entry"])

	f.settle()
	status := decode(t, f.do(http.MethodGet, "/preview", "", nil))
	assert.Equal(t, true, status["loaded"])
	assert.Equal(t, "default", status["state"])
	assert.Equal(t, true, status["viewable"])

	// The virtual origin serves the document with the bridge injected.
	serve := f.do(http.MethodGet, "/ad/index.html", "", nil)
	require.Equal(t, http.StatusOK, serve.Code)
	assert.Contains(t, serve.Body.String(), "window.mraid")
	assert.Contains(t, serve.Body.String(), "<p>hi</p>")
}

func TestLoadCreativeRawHTMLBody(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/preview/creative", "text/html", []byte("<div>pasted tag</div>"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	serve := f.do(http.MethodGet, "/ad/index.html", "", nil)
	assert.Contains(t, serve.Body.String(), "pasted tag")
}

func TestLoadCreativeRejectsEmpty(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/preview/creative", "application/json", []byte(`{"markup":"  "}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoadCreativeOverridesDimensions(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"markup":"<html><body></body></html>","width":728,"height":90,"placement":"interstitial"}`)
	rec := f.do(http.MethodPost, "/preview/creative", "application/json", body)
	require.Equal(t, http.StatusOK, rec.Code)

	f.settle()
	cur := f.adapter.Current()
	require.NotNil(t, cur)
	assert.Equal(t, 728, cur.Session().GetScreenSize().Width)
	assert.Equal(t, mraid.PlacementInterstitial, cur.Session().GetPlacementType())

	serve := f.do(http.MethodGet, "/ad/index.html", "", nil)
	assert.Contains(t, serve.Body.String(), "var WIDTH = 728;")
}

func TestLoadBundleJSON(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"files":[
		{"path":"assets/logo.js","content":"console.log('asset');","contentType":"text/javascript"},
		{"path":"index.html","content":"<html><head></head><body><script src=\"assets/logo.js\"></script></body></html>","contentType":"text/html"}
	]}`)
	rec := f.do(http.MethodPost, "/preview/bundle", "application/json", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.Equal(t, "index.html", out["entry"])
	assert.Equal(t, float64(2), out["files"])

	serve := f.do(http.MethodGet, "/ad/assets/logo.js", "", nil)
	require.Equal(t, http.StatusOK, serve.Code)
	assert.Equal(t, "console.log('asset');", serve.Body.String())
}

func TestLoadBundleZipMultipart(t *testing.T) {
	f := newFixture(t)

	var archive bytes.Buffer
	zw := zip.NewWriter(&archive)
	w, err := zw.Create("creative/index.html")
	require.NoError(t, err)
	w.Write([]byte("<html><head></head><body>zipped</body></html>"))
	require.NoError(t, zw.Close())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("bundle", "creative.zip")
	require.NoError(t, err)
	part.Write(archive.Bytes())
	mw.WriteField("width", "300")
	mw.WriteField("height", "250")
	require.NoError(t, mw.Close())

	rec := f.do(http.MethodPost, "/preview/bundle", mw.FormDataContentType(), body.Bytes())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.Equal(t, "creative/index.html", out["entry"])
	assert.Equal(t, float64(300), out["width"])

	serve := f.do(http.MethodGet, "/ad/creative/index.html", "", nil)
	require.Equal(t, http.StatusOK, serve.Code)
	assert.Contains(t, serve.Body.String(), "zipped")
}

func TestLoadBundleRejectsEmpty(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/preview/bundle", "application/json", []byte(`{"files":[]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateConfigLeavesLiveSessionAlone(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/preview/creative", "application/json",
		[]byte(`{"markup":"<html><body></body></html>"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	f.settle()

	rec = f.do(http.MethodPost, "/preview/config", "application/json",
		[]byte(`{"width":728,"height":90}`))
	require.Equal(t, http.StatusOK, rec.Code)

	// Live session still reports boot geometry; next serve injects new one.
	assert.Equal(t, 320, f.adapter.Current().Session().GetScreenSize().Width)
	serve := f.do(http.MethodGet, "/ad/index.html", "", nil)
	assert.Contains(t, serve.Body.String(), "var WIDTH = 728;")
}

func TestResize(t *testing.T) {
	f := newFixture(t)

	// No creative loaded: accepted, nothing notified.
	rec := f.do(http.MethodPost, "/preview/resize", "application/json", []byte(`{"width":300,"height":600}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["notified"])

	rec = f.do(http.MethodPost, "/preview/creative", "application/json",
		[]byte(`{"markup":"<html><body></body></html>"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/preview/resize", "application/json", []byte(`{"width":160,"height":600}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["notified"])
}

func TestClearPreview(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/preview/creative", "application/json",
		[]byte(`{"markup":"<html><body></body></html>"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodDelete, "/preview", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	status := decode(t, f.do(http.MethodGet, "/preview", "", nil))
	assert.Equal(t, false, status["loaded"])
	assert.Nil(t, f.adapter.Current())

	serve := f.do(http.MethodGet, "/ad/index.html", "", nil)
	assert.Equal(t, http.StatusNotFound, serve.Code)
}

func TestLoadRemote(t *testing.T) {
	f := newFixture(t)

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>remote tag</body></html>"))
	}))
	defer origin.Close()

	rec := f.do(http.MethodGet, "/preview/remote?url="+origin.URL, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	serve := f.do(http.MethodGet, "/ad/index.html", "", nil)
	assert.Contains(t, serve.Body.String(), "remote tag")
}

func TestLoadRemoteBadTarget(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/preview/remote", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/preview/remote?url=ftp://x/y", "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestExportDocument(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/preview/document", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/preview/creative", "text/html", []byte("<div>fragment</div>"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/preview/document", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<!DOCTYPE html>")
	assert.Contains(t, body, "window.mraid")
	assert.Contains(t, body, "<div>fragment</div>")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestLoadScriptErrorReported(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"markup":"<html><body><script>throw new Error('broken');</script></body></html>"}`)
	rec := f.do(http.MethodPost, "/preview/creative", "application/json", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "broken")
}
