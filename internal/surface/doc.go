/*
Package surface hosts creative documents inside goja JavaScript runtimes.

A Surface pairs one VM with one protocol session on a shared task loop, so
creative scripts, event dispatch, and timer callbacks all run on the same
goroutine. The VM exposes the mraid global backed directly by the session,
plus console, setTimeout, and minimal window/document shims; Node-style
globals are removed.

The Adapter manages the live surface for a preview: loading a document
parses it with goquery, executes its scripts in order (inline bodies and
bundle-resolved src references), and fires the ready transition. Loading
again replaces the surface; when loads race, only the newest one becomes
current and the losers are destroyed without ever reporting ready.
*/
package surface
