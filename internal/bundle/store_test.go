package bundle

import (
	"testing"
)

func testFiles() []File {
	return []File{
		{Path: "assets/img.png", Content: "data:image/png;base64,aWltZw==", ContentType: "image/png"},
		{Path: "index.html", Content: "<html></html>", ContentType: "text/html"},
	}
}

func TestReplaceAllSwapsWholesale(t *testing.T) {
	s := NewStore()
	gen1 := s.ReplaceAll(testFiles())

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	gen2 := s.ReplaceAll([]File{{Path: "только.html", Content: "x", ContentType: "text/html"}})
	if gen2 <= gen1 {
		t.Errorf("generation did not advance: %d -> %d", gen1, gen2)
	}
	if s.Len() != 1 {
		t.Errorf("old generation leaked into new one: Len() = %d", s.Len())
	}
	if _, ok := s.Get("index.html"); ok {
		t.Error("file from previous generation still resolvable")
	}
}

func TestResolveExact(t *testing.T) {
	s := NewStore()
	s.ReplaceAll(testFiles())

	f, ok := s.Resolve("index.html")
	if !ok || f.Path != "index.html" {
		t.Fatalf("exact resolution failed: %+v ok=%v", f, ok)
	}
}

func TestResolveStripsLeadingSlash(t *testing.T) {
	s := NewStore()
	s.ReplaceAll(testFiles())

	f, ok := s.Resolve("/index.html")
	if !ok || f.Path != "index.html" {
		t.Fatalf("leading-slash resolution failed: %+v ok=%v", f, ok)
	}
}

func TestResolveBySuffix(t *testing.T) {
	s := NewStore()
	s.ReplaceAll(testFiles())

	f, ok := s.Resolve("img.png")
	if !ok || f.Path != "assets/img.png" {
		t.Fatalf("suffix resolution failed: %+v ok=%v", f, ok)
	}
}

func TestResolveSuffixFirstMatchWins(t *testing.T) {
	s := NewStore()
	s.ReplaceAll([]File{
		{Path: "a/style.css", Content: "a", ContentType: "text/css"},
		{Path: "b/style.css", Content: "b", ContentType: "text/css"},
	})

	f, ok := s.Resolve("style.css")
	if !ok {
		t.Fatal("suffix resolution found nothing")
	}
	if f.Content != "a" {
		t.Errorf("first match in insertion order should win, got %q", f.Content)
	}
}

func TestResolveMiss(t *testing.T) {
	s := NewStore()
	s.ReplaceAll(testFiles())

	if _, ok := s.Resolve("missing.js"); ok {
		t.Error("resolved a path that does not exist")
	}
}

func TestDuplicatePathKeepsFirstPosition(t *testing.T) {
	s := NewStore()
	s.ReplaceAll([]File{
		{Path: "a.txt", Content: "first", ContentType: "text/plain"},
		{Path: "b.txt", Content: "middle", ContentType: "text/plain"},
		{Path: "a.txt", Content: "second", ContentType: "text/plain"},
	})

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (duplicate collapsed)", s.Len())
	}
	f, _ := s.Get("a.txt")
	if f.Content != "second" {
		t.Errorf("duplicate should overwrite content, got %q", f.Content)
	}
	if paths := s.Paths(); paths[0] != "a.txt" {
		t.Errorf("duplicate should keep first position, order = %v", paths)
	}
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.ReplaceAll(testFiles())
	gen := s.Generation()
	s.Clear()

	if s.Len() != 0 {
		t.Error("Clear left files behind")
	}
	if s.Generation() <= gen {
		t.Error("Clear did not advance the generation")
	}
	if _, ok := s.Resolve("index.html"); ok {
		t.Error("cleared store still resolves")
	}
}

func TestDataURIRoundTrip(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0x01}
	uri := DataURI("image/png", payload)

	if !IsDataURI(uri) {
		t.Fatal("DataURI output not recognized")
	}
	mt, data, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("DecodeDataURI: %v", err)
	}
	if mt != "image/png" {
		t.Errorf("media type = %s", mt)
	}
	if string(data) != string(payload) {
		t.Errorf("payload mismatch: %v", data)
	}
}

func TestDecodeDataURIPercentEncoded(t *testing.T) {
	mt, data, err := DecodeDataURI("data:text/plain,hello%20world")
	if err != nil {
		t.Fatalf("DecodeDataURI: %v", err)
	}
	if mt != "text/plain" || string(data) != "hello world" {
		t.Errorf("got %s %q", mt, data)
	}
}

func TestDecodeDataURIRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeDataURI("http://not-a-data-uri"); err == nil {
		t.Error("expected error for non-data URI")
	}
	if _, _, err := DecodeDataURI("data:image/png;base64"); err == nil {
		t.Error("expected error for missing payload")
	}
}
