package surface

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adforge/preview/internal/mraid"
)

func testMraidConfig() mraid.Config {
	return mraid.Config{Width: 320, Height: 480, Placement: mraid.PlacementInline}
}

// recorder collects protocol events and console lines from the loop
// goroutine.
type recorder struct {
	mu      sync.Mutex
	events  []string
	console []string
}

func (r *recorder) event(event string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) log(level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.console = append(r.console, message)
}

func (r *recorder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...), append([]string(nil), r.console...)
}

func TestExecuteProtocolGlobals(t *testing.T) {
	rec := &recorder{}
	s := New(Options{Config: testMraidConfig(), Console: rec.log})
	defer s.Destroy()

	script := `console.log(mraid.getVersion(), mraid.getState(), mraid.getPlacementType(), mraid.isViewable());`
	if err := s.Execute(context.Background(), "globals", script); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	_, console := rec.snapshot()
	if len(console) != 1 || console[0] != "3.0 loading inline false" {
		t.Errorf("console = %v, want [3.0 loading inline false]", console)
	}
}

func TestRemovedGlobals(t *testing.T) {
	s := New(Options{Config: testMraidConfig()})
	defer s.Destroy()

	for _, name := range []string{"require", "process", "module", "exports"} {
		script := "typeof " + name + " === 'undefined' || " + name + " === undefined"
		if err := s.Execute(context.Background(), "guard", "if (!("+script+")) { throw new Error('"+name+" leaked'); }"); err != nil {
			t.Errorf("global %s reachable: %v", name, err)
		}
	}
}

func TestReadyOrderingSeenFromScript(t *testing.T) {
	rec := &recorder{}
	s := New(Options{Config: testMraidConfig(), Console: rec.log})
	defer s.Destroy()

	setup := `
		var seen = [];
		mraid.addEventListener('ready', function () { seen.push('ready:' + mraid.getState()); });
		mraid.addEventListener('stateChange', function (st) { seen.push('state:' + st); });
		mraid.addEventListener('viewableChange', function (v) { seen.push('viewable:' + v); });
	`
	if err := s.Execute(context.Background(), "setup", setup); err != nil {
		t.Fatalf("setup error = %v", err)
	}

	s.Start()
	s.Session().Loop().Flush()

	if err := s.Execute(context.Background(), "check", "console.log(seen.join(','));"); err != nil {
		t.Fatalf("check error = %v", err)
	}
	_, console := rec.snapshot()
	want := "ready:default,state:default,viewable:true"
	if len(console) != 1 || console[0] != want {
		t.Errorf("ordering = %v, want %q", console, want)
	}
}

func TestRemoveListenerByFunctionIdentity(t *testing.T) {
	rec := &recorder{}
	s := New(Options{Config: testMraidConfig(), Console: rec.log})
	defer s.Destroy()

	script := `
		var calls = 0;
		function onReady() { calls++; }
		mraid.addEventListener('ready', onReady);
		mraid.removeEventListener('ready', onReady);
		mraid.addEventListener('ready', function () { console.log('calls=' + calls); });
	`
	if err := s.Execute(context.Background(), "setup", script); err != nil {
		t.Fatalf("setup error = %v", err)
	}

	s.Start()
	s.Session().Loop().Flush()

	_, console := rec.snapshot()
	if len(console) != 1 || console[0] != "calls=0" {
		t.Errorf("console = %v, want [calls=0]", console)
	}
}

func TestLateListenerReplayFromScript(t *testing.T) {
	rec := &recorder{}
	s := New(Options{Config: testMraidConfig(), Console: rec.log})
	defer s.Destroy()

	s.Start()
	s.Session().Loop().Flush()

	late := `mraid.addEventListener('ready', function () { console.log('late:' + mraid.getState()); });`
	if err := s.Execute(context.Background(), "late", late); err != nil {
		t.Fatalf("late error = %v", err)
	}

	// Replay is asynchronous.
	if _, console := rec.snapshot(); len(console) != 0 {
		t.Fatalf("replay ran synchronously: %v", console)
	}
	s.Session().Loop().Flush()

	_, console := rec.snapshot()
	if len(console) != 1 || console[0] != "late:default" {
		t.Errorf("console = %v, want [late:default]", console)
	}
}

func TestSetTimeoutRunsOnLoop(t *testing.T) {
	rec := &recorder{}
	s := New(Options{Config: testMraidConfig(), Console: rec.log})
	defer s.Destroy()

	script := `setTimeout(function () { console.log('fired:' + mraid.getState()); }, 10);`
	if err := s.Execute(context.Background(), "timer", script); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, console := rec.snapshot(); len(console) == 1 {
			if console[0] != "fired:loading" {
				t.Errorf("console = %v, want [fired:loading]", console)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timer callback never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestClearTimeoutCancels(t *testing.T) {
	rec := &recorder{}
	s := New(Options{Config: testMraidConfig(), Console: rec.log})
	defer s.Destroy()

	script := `var id = setTimeout(function () { console.log('should not run'); }, 20); clearTimeout(id);`
	if err := s.Execute(context.Background(), "timer", script); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	s.Session().Loop().Flush()
	if _, console := rec.snapshot(); len(console) != 0 {
		t.Errorf("cancelled timer fired: %v", console)
	}
}

func TestExecuteScriptError(t *testing.T) {
	s := New(Options{Config: testMraidConfig()})
	defer s.Destroy()

	if err := s.Execute(context.Background(), "boom", "throw new Error('boom');"); err == nil {
		t.Error("Execute() error = nil, want script error")
	}
}

func TestExecuteTimeout(t *testing.T) {
	s := New(Options{Config: testMraidConfig(), Timeout: 50 * time.Millisecond})
	defer s.Destroy()

	err := s.Execute(context.Background(), "spin", "while (true) {}")
	if err == nil {
		t.Fatal("Execute() error = nil, want interrupt")
	}

	// The VM must stay usable after an interrupt.
	if err := s.Execute(context.Background(), "after", "1 + 1"); err != nil {
		t.Errorf("Execute() after interrupt error = %v", err)
	}
}

func TestExecuteAfterDestroy(t *testing.T) {
	s := New(Options{Config: testMraidConfig()})
	s.Destroy()

	if err := s.Execute(context.Background(), "late", "1"); err != ErrDestroyed {
		t.Errorf("Execute() error = %v, want ErrDestroyed", err)
	}
}

func TestFailEndsLifecycle(t *testing.T) {
	rec := &recorder{}
	s := New(Options{Config: testMraidConfig(), Events: rec.event})
	defer s.Destroy()

	s.Fail("bad creative")
	s.Session().Loop().Flush()

	if got := s.Session().GetState(); got != mraid.StateHidden {
		t.Errorf("state = %v, want hidden", got)
	}
	events, _ := rec.snapshot()
	if len(events) != 1 || events[0] != "error" {
		t.Errorf("events = %v, want [error]", events)
	}

	// Start after a failed load must not resurrect the session.
	s.Start()
	s.Session().Loop().Flush()
	if got := s.Session().GetState(); got != mraid.StateHidden {
		t.Errorf("state after Start = %v, want hidden", got)
	}
}

func TestEventForwarding(t *testing.T) {
	rec := &recorder{}
	s := New(Options{Config: testMraidConfig(), Events: rec.event})
	defer s.Destroy()

	s.Start()
	s.Session().Loop().Flush()

	events, _ := rec.snapshot()
	want := "ready,stateChange,viewableChange"
	if strings.Join(events, ",") != want {
		t.Errorf("events = %v, want %q", events, want)
	}
}

func TestWindowOpenEmitsIntent(t *testing.T) {
	var mu sync.Mutex
	var kinds []mraid.IntentKind
	sink := func(in mraid.Intent) {
		mu.Lock()
		kinds = append(kinds, in.Kind)
		mu.Unlock()
	}
	s := New(Options{Config: testMraidConfig(), Sink: sink})
	defer s.Destroy()

	if err := s.Execute(context.Background(), "open", "window.open('https://example.com');"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != 1 || kinds[0] != mraid.IntentOpen {
		t.Errorf("intents = %v, want [open]", kinds)
	}
}
