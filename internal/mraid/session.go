package mraid

import (
	"sync"

	"go.uber.org/zap"
)

// Config fixes the per-session constants. Dimensions are baked in at session
// creation; resizing the visual surface later never changes what a running
// session reports (a reload is required).
type Config struct {
	Width     int
	Height    int
	Placement Placement
}

// Session is the protocol state machine for one rendered document.
type Session struct {
	cfg    Config
	loop   *Loop
	sink   IntentSink
	opener func(url string)
	logger *zap.Logger

	mu        sync.Mutex
	state     State
	viewable  bool
	ready     bool
	listeners map[Event][]*Listener
}

// NewSession creates a session in Loading with its own task loop. The sink
// receives outbound intents; pass nil to discard them.
func NewSession(cfg Config, sink IntentSink, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = func(Intent) {}
	}
	return &Session{
		cfg:       cfg,
		loop:      NewLoop(),
		sink:      sink,
		logger:    logger.Named("mraid"),
		state:     StateLoading,
		listeners: make(map[Event][]*Listener),
	}
}

// Loop exposes the session's scheduler so the surface adapter can run
// creative scripts on the same goroutine as event dispatch.
func (s *Session) Loop() *Loop { return s.loop }

// SetOpener installs the best-effort local default for open/playVideo style
// calls (e.g. spawning a browsing context). Intents are emitted regardless.
func (s *Session) SetOpener(fn func(url string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opener = fn
}

// Start performs the ready transition on the next tick, exactly once:
// state=default, viewable=true, then ready, stateChange(default),
// viewableChange(true) in that order. Call it when the host document's
// structural parse has completed.
func (s *Session) Start() {
	s.loop.Post(func() {
		s.mu.Lock()
		if s.ready || s.state == StateHidden {
			s.mu.Unlock()
			return
		}
		s.state = StateDefault
		s.viewable = true
		s.ready = true
		s.mu.Unlock()

		s.dispatch(EventReady)
		s.dispatch(EventStateChange, string(StateDefault))
		s.dispatch(EventViewableChange, true)
	})
}

// Terminate marks the session hidden after a load error. No event lifecycle
// applies past this point; a fresh session (reload) is the only way back.
func (s *Session) Terminate() {
	s.mu.Lock()
	s.state = StateHidden
	s.viewable = false
	s.mu.Unlock()
}

// NotifySize reports a host container resize to sizeChange listeners. The
// session's reported geometry stays fixed at its creation values; only the
// event arguments carry the new size.
func (s *Session) NotifySize(width, height int) {
	s.loop.Post(func() {
		s.dispatch(EventSizeChange, width, height)
	})
}

// Fail reports a fatal load error to error listeners and moves the session
// to its terminal state. The transition and the dispatch happen together on
// the task loop so listeners observe the final state.
func (s *Session) Fail(message, action string) {
	s.loop.Post(func() {
		s.mu.Lock()
		s.state = StateHidden
		s.viewable = false
		s.mu.Unlock()
		s.dispatch(EventError, message, action)
	})
}

// Destroy stops the task loop. The session must not be used afterwards.
func (s *Session) Destroy() {
	s.loop.Stop()
}

// GetVersion returns the protocol version, constant for the session.
func (s *Session) GetVersion() string { return Version }

// GetPlacementType returns the configured placement, constant for the session.
func (s *Session) GetPlacementType() Placement { return s.cfg.Placement }

// GetState returns the current lifecycle state.
func (s *Session) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsViewable returns the current viewability flag.
func (s *Session) IsViewable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewable
}

// GetScreenSize returns the configured dimensions.
func (s *Session) GetScreenSize() Size {
	return Size{Width: s.cfg.Width, Height: s.cfg.Height}
}

// GetMaxSize returns the configured dimensions.
func (s *Session) GetMaxSize() Size { return s.GetScreenSize() }

// GetCurrentPosition returns the full surface rect at origin (0,0).
func (s *Session) GetCurrentPosition() Position {
	return Position{X: 0, Y: 0, Width: s.cfg.Width, Height: s.cfg.Height}
}

// GetDefaultPosition returns the full surface rect at origin (0,0).
func (s *Session) GetDefaultPosition() Position { return s.GetCurrentPosition() }

// GetExpandProperties returns a fixed mock matching the configured size.
func (s *Session) GetExpandProperties() map[string]any {
	return map[string]any{
		"width":          s.cfg.Width,
		"height":         s.cfg.Height,
		"useCustomClose": false,
		"isModal":        true,
	}
}

// SetExpandProperties is accepted and intentionally has no effect.
func (s *Session) SetExpandProperties(props any) {
	s.logger.Debug("setExpandProperties ignored", zap.Any("props", props))
}

// GetResizeProperties returns a fixed mock.
func (s *Session) GetResizeProperties() map[string]any {
	return map[string]any{
		"width":               s.cfg.Width,
		"height":              s.cfg.Height,
		"offsetX":             0,
		"offsetY":             0,
		"customClosePosition": "top-right",
		"allowOffscreen":      false,
	}
}

// SetResizeProperties is accepted and intentionally has no effect.
func (s *Session) SetResizeProperties(props any) {
	s.logger.Debug("setResizeProperties ignored", zap.Any("props", props))
}

// GetOrientationProperties returns a fixed mock.
func (s *Session) GetOrientationProperties() map[string]any {
	return map[string]any{
		"allowOrientationChange": true,
		"forceOrientation":       "none",
	}
}

// SetOrientationProperties is accepted and intentionally has no effect.
func (s *Session) SetOrientationProperties(props any) {
	s.logger.Debug("setOrientationProperties ignored", zap.Any("props", props))
}

// Supports reports the fixed capability table; unknown features are false.
func (s *Session) Supports(feature string) bool { return Supports(feature) }

// AddEventListener registers a callback for an event. Registration order is
// preserved per event name. Unknown event names are ignored with a log line.
// If the ready transition already happened, listeners for ready, stateChange
// and viewableChange are replayed asynchronously with current values.
func (s *Session) AddEventListener(name string, l *Listener) {
	event, err := ParseEvent(name)
	if err != nil {
		s.logger.Warn("listener for unknown event ignored", zap.String("event", name))
		return
	}
	if l == nil {
		return
	}

	s.mu.Lock()
	s.listeners[event] = append(s.listeners[event], l)
	replay := s.ready && replayable(event)
	s.mu.Unlock()

	if !replay {
		return
	}
	s.loop.Post(func() {
		s.mu.Lock()
		state := s.state
		viewable := s.viewable
		s.mu.Unlock()

		switch event {
		case EventReady:
			s.invoke(event, l)
		case EventStateChange:
			s.invoke(event, l, string(state))
		case EventViewableChange:
			s.invoke(event, l, viewable)
		}
	})
}

// RemoveEventListener removes a previously registered listener by reference.
func (s *Session) RemoveEventListener(name string, l *Listener) {
	event, err := ParseEvent(name)
	if err != nil || l == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.listeners[event]
	for i, registered := range list {
		if registered == l {
			s.listeners[event] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Open emits an open intent and performs the local default action.
func (s *Session) Open(url string) {
	s.emit(newIntent(IntentOpen, url))
	s.localOpen(url)
}

// PlayVideo emits a playVideo intent and performs the local default action.
func (s *Session) PlayVideo(url string) {
	s.emit(newIntent(IntentPlayVideo, url))
	s.localOpen(url)
}

// StorePicture emits a storePicture intent. The container has nowhere to
// store pictures, so the local default is a no-op.
func (s *Session) StorePicture(url string) {
	s.emit(newIntent(IntentStorePicture, url))
}

// CreateCalendarEvent emits a createCalendarEvent intent.
func (s *Session) CreateCalendarEvent(params any) {
	s.emit(newIntent(IntentCreateCalendarEvent, params))
}

// Expand transitions Default -> Expanded and fires stateChange(expanded).
// Calls from any other state are silent no-ops.
func (s *Session) Expand(url string) {
	s.mu.Lock()
	if s.state != StateDefault {
		s.mu.Unlock()
		return
	}
	s.state = StateExpanded
	s.mu.Unlock()

	args := []any{}
	if url != "" {
		args = append(args, url)
	}
	s.emit(newIntent(IntentExpand, args...))
	s.loop.Post(func() {
		s.dispatch(EventStateChange, string(StateExpanded))
	})
}

// Close transitions Expanded -> Default and fires stateChange(default).
// Calls from any other state are silent no-ops (never a throw).
func (s *Session) Close() {
	s.mu.Lock()
	if s.state != StateExpanded {
		s.mu.Unlock()
		return
	}
	s.state = StateDefault
	s.mu.Unlock()

	s.emit(newIntent(IntentClose))
	s.loop.Post(func() {
		s.dispatch(EventStateChange, string(StateDefault))
	})
}

// Resize emits a resize intent and never changes state. The protocol has a
// nominal resized state that no transition enters; see State docs.
func (s *Session) Resize() {
	s.emit(newIntent(IntentResize))
}

func (s *Session) emit(intent Intent) {
	s.sink(intent)
}

func (s *Session) localOpen(url string) {
	s.mu.Lock()
	opener := s.opener
	s.mu.Unlock()
	if opener != nil {
		opener(url)
	}
}

// dispatch invokes every listener registered for event, in registration
// order, on the calling goroutine (the loop). A panicking callback is logged
// and never blocks the remaining callbacks.
func (s *Session) dispatch(event Event, args ...any) {
	s.mu.Lock()
	list := append([]*Listener(nil), s.listeners[event]...)
	s.mu.Unlock()

	for _, l := range list {
		s.invoke(event, l, args...)
	}
}

func (s *Session) invoke(event Event, l *Listener, args ...any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("listener panicked",
				zap.String("event", string(event)),
				zap.Any("panic", r),
			)
		}
	}()
	l.fn(args...)
}
