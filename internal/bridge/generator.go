// Package bridge generates the self-contained emulator script injected into
// creative documents, and performs the injection itself.
//
// The generated program defines window.mraid for rendering surfaces that are
// real browsers (the bundle server injects it into every HTML response). The
// embedded goja surface binds the canonical Go state machine instead; both
// implement the same contract.
package bridge

import (
	"strings"
	"text/template"

	"github.com/adforge/preview/internal/mraid"
)

type scriptData struct {
	Width     int
	Height    int
	Placement mraid.Placement
	Version   string
}

// Generate renders the bridge program for the given dimensions and placement
// type. Pure and deterministic; dimensions are embedded as numeric literals
// so the output needs no external fetch. Callers validate that dimensions
// are positive.
func Generate(width, height int, placement mraid.Placement) string {
	var b strings.Builder
	// The template cannot fail on a plain value struct.
	_ = scriptTmpl.Execute(&b, scriptData{
		Width:     width,
		Height:    height,
		Placement: placement,
		Version:   mraid.Version,
	})
	return b.String()
}

var scriptTmpl = template.Must(template.New("bridge").Parse(`(function () {
  'use strict';
  if (window.mraid) { return; }

  var VERSION = '{{.Version}}';
  var PLACEMENT = '{{.Placement}}';
  var WIDTH = {{.Width}};
  var HEIGHT = {{.Height}};

  var state = 'loading';
  var viewable = false;
  var ready = false;
  var listeners = {
    ready: [],
    error: [],
    stateChange: [],
    viewableChange: [],
    sizeChange: []
  };
  var supports = {
    sms: false,
    tel: false,
    calendar: true,
    storePicture: true,
    inlineVideo: true,
    vpaid: false,
    location: false
  };
  var expandProps = { width: WIDTH, height: HEIGHT, useCustomClose: false, isModal: true };
  var resizeProps = {
    width: WIDTH,
    height: HEIGHT,
    offsetX: 0,
    offsetY: 0,
    customClosePosition: 'top-right',
    allowOffscreen: false
  };
  var orientationProps = { allowOrientationChange: true, forceOrientation: 'none' };

  function emit(kind, args) {
    try {
      window.parent.postMessage({
        type: 'mraid-intent',
        kind: kind,
        args: args || [],
        timestamp: Date.now()
      }, '*');
    } catch (e) { /* host gone; fire-and-forget */ }
  }

  function fire(name, args) {
    var list = listeners[name] || [];
    for (var i = 0; i < list.length; i++) {
      try {
        list[i].apply(null, args || []);
      } catch (e) {
        if (window.console && console.error) {
          console.error('mraid listener threw for ' + name + ':', e);
        }
      }
    }
  }

  var mraid = {
    getVersion: function () { return VERSION; },
    getPlacementType: function () { return PLACEMENT; },
    getState: function () { return state; },
    isViewable: function () { return viewable; },

    getScreenSize: function () { return { width: WIDTH, height: HEIGHT }; },
    getMaxSize: function () { return { width: WIDTH, height: HEIGHT }; },
    getCurrentPosition: function () { return { x: 0, y: 0, width: WIDTH, height: HEIGHT }; },
    getDefaultPosition: function () { return { x: 0, y: 0, width: WIDTH, height: HEIGHT }; },

    getExpandProperties: function () { return expandProps; },
    setExpandProperties: function () { /* accepted, no effect */ },
    getResizeProperties: function () { return resizeProps; },
    setResizeProperties: function () { /* accepted, no effect */ },
    getOrientationProperties: function () { return orientationProps; },
    setOrientationProperties: function () { /* accepted, no effect */ },

    supports: function (feature) { return supports[feature] === true; },

    addEventListener: function (name, cb) {
      if (!(name in listeners) || typeof cb !== 'function') { return; }
      listeners[name].push(cb);
      if (!ready) { return; }
      // Late registration: replay current values, one tick removed.
      if (name === 'ready') {
        setTimeout(function () { cb(); }, 0);
      } else if (name === 'stateChange') {
        setTimeout(function () { cb(state); }, 0);
      } else if (name === 'viewableChange') {
        setTimeout(function () { cb(viewable); }, 0);
      }
    },

    removeEventListener: function (name, cb) {
      if (!(name in listeners)) { return; }
      var idx = listeners[name].indexOf(cb);
      if (idx >= 0) { listeners[name].splice(idx, 1); }
    },

    open: function (url) {
      emit('open', [url]);
      try { window.open(url, '_blank'); } catch (e) {}
    },
    playVideo: function (url) {
      emit('playVideo', [url]);
      try { window.open(url, '_blank'); } catch (e) {}
    },
    storePicture: function (url) {
      emit('storePicture', [url]);
    },
    createCalendarEvent: function (params) {
      emit('createCalendarEvent', [params]);
    },

    expand: function (url) {
      if (state !== 'default') { return; }
      state = 'expanded';
      emit('expand', url ? [url] : []);
      setTimeout(function () { fire('stateChange', ['expanded']); }, 0);
    },
    close: function () {
      if (state !== 'expanded') { return; }
      state = 'default';
      emit('close', []);
      setTimeout(function () { fire('stateChange', ['default']); }, 0);
    },
    resize: function () {
      emit('resize', []);
    },

    useCustomClose: function () { /* accepted, no effect */ }
  };

  window.mraid = mraid;

  function becomeReady() {
    if (ready) { return; }
    ready = true;
    state = 'default';
    viewable = true;
    fire('ready');
    fire('stateChange', ['default']);
    fire('viewableChange', [true]);
  }

  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', function () {
      setTimeout(becomeReady, 0);
    });
  } else {
    setTimeout(becomeReady, 0);
  }
})();
`))
