package surface

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/adforge/preview/internal/infrastructure/monitoring"
	"github.com/adforge/preview/internal/mraid"
)

// EventSink receives every protocol event a surface dispatches, after the
// surface's own JavaScript listeners have run.
type EventSink func(event string, args []any)

// ConsoleSink receives console output from creative scripts.
type ConsoleSink func(level, message string)

// Options configures a surface.
type Options struct {
	Config  mraid.Config
	Sink    mraid.IntentSink
	Events  EventSink
	Console ConsoleSink
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	Timeout time.Duration
}

// DefaultTimeout bounds a single script execution.
const DefaultTimeout = 5 * time.Second

// registration pairs a JavaScript handler with the host listener wrapping
// it, so removeEventListener can match by the function the creative passed.
type registration struct {
	event string
	fn    goja.Value
	l     *mraid.Listener
}

// Surface hosts one creative document: a goja VM and a protocol session
// sharing a task loop. All VM access happens on the loop goroutine.
type Surface struct {
	session *mraid.Session
	vm      *goja.Runtime
	logger  *zap.Logger
	metrics *monitoring.Metrics
	console ConsoleSink
	timeout time.Duration

	// regs is only touched from the loop goroutine.
	regs []registration

	// domReady callbacks registered via document.addEventListener,
	// loop goroutine only.
	domReady []goja.Callable

	timersMu  sync.Mutex
	timers    map[int]*time.Timer
	nextTimer int
	closed    bool
}

// ErrDestroyed is returned when a script is submitted after Destroy.
var ErrDestroyed = errors.New("surface destroyed")

// New creates a surface in the loading state. Scripts do not run until
// Execute is called; the ready transition fires on Start.
func New(opts Options) *Surface {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	vm := goja.New()
	// Creatives see json-tagged field names (Size.width, Position.x).
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	s := &Surface{
		session: mraid.NewSession(opts.Config, opts.Sink, opts.Logger),
		vm:      vm,
		logger:  logger.Named("surface"),
		metrics: opts.Metrics,
		console: opts.Console,
		timeout: timeout,
		timers:  make(map[int]*time.Timer),
	}

	s.setupGlobals(opts.Config)
	s.bindProtocol()
	if opts.Events != nil {
		s.forwardEvents(opts.Events)
	}
	return s
}

// Session exposes the underlying protocol state machine.
func (s *Surface) Session() *mraid.Session { return s.session }

// Execute runs a creative script on the loop goroutine with a timeout and
// context interrupt. The source name appears in JavaScript stack traces.
func (s *Surface) Execute(ctx context.Context, name, src string) error {
	var execErr error
	stop := make(chan struct{})
	go func() {
		timer := time.NewTimer(s.timeout)
		defer timer.Stop()
		select {
		case <-timer.C:
			s.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			s.vm.Interrupt("context cancelled")
		case <-stop:
		}
	}()

	ok := s.session.Loop().Call(func() {
		// Drop any interrupt that landed after a previous run finished.
		s.vm.ClearInterrupt()
		defer s.vm.ClearInterrupt()
		start := time.Now()
		_, err := s.vm.RunScript(name, src)
		if s.metrics != nil {
			s.metrics.ScriptDuration.Observe(time.Since(start).Seconds())
		}
		execErr = err
	})
	close(stop)

	if !ok {
		return ErrDestroyed
	}
	if execErr != nil {
		s.logger.Warn("script error", zap.String("script", name), zap.Error(execErr))
	}
	return execErr
}

// Start fires DOMContentLoaded handlers and then performs the ready
// transition. Call it once, after every creative script has executed.
func (s *Surface) Start() {
	s.session.Loop().Post(func() {
		if doc, ok := s.vm.Get("document").(*goja.Object); ok && doc != nil {
			doc.Set("readyState", "complete")
		}
		for _, fn := range s.domReady {
			if _, err := fn(goja.Undefined()); err != nil {
				s.logger.Warn("DOMContentLoaded handler error", zap.Error(err))
			}
		}
		s.domReady = nil
	})
	s.session.Start()
}

// Fail reports a fatal load error and ends the lifecycle.
func (s *Surface) Fail(message string) {
	s.session.Fail(message, "load")
}

// Destroy cancels pending timers and stops the task loop. Idempotent.
func (s *Surface) Destroy() {
	s.timersMu.Lock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.timersMu.Unlock()
	s.session.Destroy()
}

// setupGlobals installs console, timers, and the window/document shims, and
// removes the Node-style globals a creative must not see.
func (s *Surface) setupGlobals(cfg mraid.Config) {
	vm := s.vm

	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())
	vm.Set("module", goja.Undefined())
	vm.Set("exports", goja.Undefined())

	console := vm.NewObject()
	console.Set("log", s.makeConsoleFunc("log"))
	console.Set("info", s.makeConsoleFunc("info"))
	console.Set("warn", s.makeConsoleFunc("warn"))
	console.Set("error", s.makeConsoleFunc("error"))
	console.Set("debug", s.makeConsoleFunc("debug"))
	vm.Set("console", console)

	vm.Set("setTimeout", s.jsSetTimeout)
	vm.Set("clearTimeout", s.jsClearTimeout)
	vm.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		s.logger.Warn("setInterval is not supported")
		return goja.Undefined()
	})
	vm.Set("clearInterval", func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})

	window := vm.NewObject()
	window.Set("innerWidth", cfg.Width)
	window.Set("innerHeight", cfg.Height)
	window.Set("open", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			s.session.Open(call.Arguments[0].String())
		}
		return goja.Null()
	})
	vm.Set("window", window)

	document := vm.NewObject()
	document.Set("readyState", "loading")
	document.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return goja.Undefined()
		}
		if call.Arguments[0].String() != "DOMContentLoaded" {
			return goja.Undefined()
		}
		if fn, ok := goja.AssertFunction(call.Arguments[1]); ok {
			s.domReady = append(s.domReady, fn)
		}
		return goja.Undefined()
	})
	vm.Set("document", document)
	window.Set("document", document)
}

// bindProtocol publishes the session as the mraid global. JavaScript
// listeners are wrapped in host listeners and tracked so removal matches
// the exact function the creative registered.
func (s *Surface) bindProtocol() {
	vm := s.vm
	sess := s.session

	obj := vm.NewObject()
	obj.Set("getVersion", sess.GetVersion)
	obj.Set("getPlacementType", func() string { return string(sess.GetPlacementType()) })
	obj.Set("getState", func() string { return string(sess.GetState()) })
	obj.Set("isViewable", sess.IsViewable)
	obj.Set("getScreenSize", sess.GetScreenSize)
	obj.Set("getMaxSize", sess.GetMaxSize)
	obj.Set("getCurrentPosition", sess.GetCurrentPosition)
	obj.Set("getDefaultPosition", sess.GetDefaultPosition)
	obj.Set("getExpandProperties", sess.GetExpandProperties)
	obj.Set("setExpandProperties", func(props goja.Value) { sess.SetExpandProperties(props.Export()) })
	obj.Set("getResizeProperties", sess.GetResizeProperties)
	obj.Set("setResizeProperties", func(props goja.Value) { sess.SetResizeProperties(props.Export()) })
	obj.Set("getOrientationProperties", sess.GetOrientationProperties)
	obj.Set("setOrientationProperties", func(props goja.Value) { sess.SetOrientationProperties(props.Export()) })
	obj.Set("supports", sess.Supports)
	obj.Set("addEventListener", s.jsAddListener)
	obj.Set("removeEventListener", s.jsRemoveListener)
	obj.Set("open", sess.Open)
	obj.Set("expand", func(call goja.FunctionCall) goja.Value {
		url := ""
		if len(call.Arguments) > 0 && !goja.IsUndefined(call.Arguments[0]) && !goja.IsNull(call.Arguments[0]) {
			url = call.Arguments[0].String()
		}
		sess.Expand(url)
		return goja.Undefined()
	})
	obj.Set("close", sess.Close)
	obj.Set("resize", sess.Resize)
	obj.Set("playVideo", sess.PlayVideo)
	obj.Set("storePicture", sess.StorePicture)
	obj.Set("createCalendarEvent", func(params goja.Value) { sess.CreateCalendarEvent(params.Export()) })
	obj.Set("useCustomClose", func(goja.Value) {})

	vm.Set("mraid", obj)
	if window, ok := vm.Get("window").(*goja.Object); ok {
		window.Set("mraid", obj)
	}
}

func (s *Surface) jsAddListener(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) < 2 {
		return goja.Undefined()
	}
	event := call.Arguments[0].String()
	fnVal := call.Arguments[1]
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return goja.Undefined()
	}

	// Dispatch happens on the loop goroutine, so invoking the callable
	// here is safe VM access.
	l := mraid.NewListener(func(args ...any) {
		jsArgs := make([]goja.Value, len(args))
		for i, a := range args {
			jsArgs[i] = s.vm.ToValue(a)
		}
		if _, err := fn(goja.Undefined(), jsArgs...); err != nil {
			s.logger.Warn("listener error", zap.String("event", event), zap.Error(err))
		}
	})
	s.regs = append(s.regs, registration{event: event, fn: fnVal, l: l})
	s.session.AddEventListener(event, l)
	return goja.Undefined()
}

func (s *Surface) jsRemoveListener(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) < 2 {
		return goja.Undefined()
	}
	event := call.Arguments[0].String()
	fnVal := call.Arguments[1]
	for i, reg := range s.regs {
		if reg.event == event && reg.fn.StrictEquals(fnVal) {
			s.session.RemoveEventListener(event, reg.l)
			s.regs = append(s.regs[:i:i], s.regs[i+1:]...)
			return goja.Undefined()
		}
	}
	return goja.Undefined()
}

func (s *Surface) jsSetTimeout(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) == 0 {
		return s.vm.ToValue(0)
	}
	fn, ok := goja.AssertFunction(call.Arguments[0])
	if !ok {
		return s.vm.ToValue(0)
	}
	delay := time.Duration(0)
	if len(call.Arguments) > 1 {
		delay = time.Duration(call.Arguments[1].ToInteger()) * time.Millisecond
	}

	s.timersMu.Lock()
	if s.closed {
		s.timersMu.Unlock()
		return s.vm.ToValue(0)
	}
	s.nextTimer++
	id := s.nextTimer
	s.timers[id] = time.AfterFunc(delay, func() {
		s.timersMu.Lock()
		delete(s.timers, id)
		s.timersMu.Unlock()
		// Post after Stop is a no-op, so a firing timer cannot touch a
		// destroyed VM.
		s.session.Loop().Post(func() {
			if _, err := fn(goja.Undefined()); err != nil {
				s.logger.Warn("timer callback error", zap.Error(err))
			}
		})
	})
	s.timersMu.Unlock()
	return s.vm.ToValue(id)
}

func (s *Surface) jsClearTimeout(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) == 0 {
		return goja.Undefined()
	}
	id := int(call.Arguments[0].ToInteger())
	s.timersMu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.timersMu.Unlock()
	return goja.Undefined()
}

func (s *Surface) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		var msg string
		for i, arg := range call.Arguments {
			if i > 0 {
				msg += " "
			}
			msg += arg.String()
		}

		switch level {
		case "warn":
			s.logger.Warn(msg, zap.String("source", "console"))
		case "error":
			s.logger.Error(msg, zap.String("source", "console"))
		default:
			s.logger.Info(msg, zap.String("source", "console"))
		}
		if s.console != nil {
			s.console(level, msg)
		}
		return goja.Undefined()
	}
}

// forwardEvents registers a host listener for every protocol event.
// Registration happens at construction, ahead of any creative listener.
func (s *Surface) forwardEvents(sink EventSink) {
	for _, ev := range []string{"ready", "error", "stateChange", "viewableChange", "sizeChange"} {
		event := ev
		s.session.AddEventListener(event, mraid.NewListener(func(args ...any) {
			sink(event, args)
		}))
	}
}
