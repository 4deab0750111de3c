// Package mraid emulates the MRAID ad-SDK contract for untrusted creatives.
//
// A Session is the protocol state machine for one rendered document: it
// tracks the Loading -> Default -> Expanded lifecycle, viewability, and
// ordered event listener lists, and reports creative-initiated intents
// (open, expand, playVideo, ...) to the host through a fire-and-forget sink.
//
// All event dispatch runs on the session's cooperative task loop, one tick
// removed from the call that triggered it. This matches the scheduling that
// creatives written against real SDKs expect: ready fires before stateChange,
// which fires before viewableChange, and a listener registered after the
// ready transition is still replayed asynchronously with current values.
//
// Sessions never survive a reload. Tearing down a surface destroys its
// session; the next load starts a fresh one in Loading.
package mraid
