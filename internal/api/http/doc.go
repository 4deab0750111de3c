// Package http implements the REST control surface: loading creatives and
// bundles, preview configuration, and the standalone document export.
package http
