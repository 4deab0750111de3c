package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// textExtensions are stored as plain text; everything else becomes a data
// URI so binary payloads survive the string-typed store.
var textExtensions = map[string]bool{
	".html": true,
	".htm":  true,
	".js":   true,
	".css":  true,
	".json": true,
	".txt":  true,
	".svg":  true,
	".xml":  true,
	".csv":  true,
	".md":   true,
}

// FromZip extracts a creative bundle from an in-memory zip archive into a
// replacement file set. Directory entries and macOS resource forks are
// skipped. maxBytes caps the total decoded size; 0 means no cap.
func FromZip(data []byte, maxBytes int64) ([]File, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open bundle archive: %w", err)
	}

	var files []File
	var total int64
	for _, entry := range reader.File {
		name := path.Clean(entry.Name)
		if entry.FileInfo().IsDir() || skipEntry(name) {
			continue
		}
		// Zip-slip: entries must stay inside the virtual root.
		if strings.HasPrefix(name, "../") || path.IsAbs(name) {
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("open bundle entry %s: %w", name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read bundle entry %s: %w", name, err)
		}

		total += int64(len(content))
		if maxBytes > 0 && total > maxBytes {
			return nil, fmt.Errorf("bundle exceeds %d bytes decoded", maxBytes)
		}

		files = append(files, materializeFile(name, content))
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("bundle archive contains no usable files")
	}
	return files, nil
}

func skipEntry(name string) bool {
	base := path.Base(name)
	return strings.HasPrefix(name, "__MACOSX/") ||
		strings.HasPrefix(base, "._") ||
		base == ".DS_Store"
}

func materializeFile(name string, content []byte) File {
	ct := contentTypeFor(name, content)
	if textExtensions[strings.ToLower(path.Ext(name))] {
		return File{Path: name, Content: string(content), ContentType: ct}
	}
	return File{Path: name, Content: DataURI(ct, content), ContentType: ct}
}

// contentTypeFor prefers the extension mapping and falls back to content
// sniffing for unknown extensions.
func contentTypeFor(name string, content []byte) string {
	ext := strings.ToLower(path.Ext(name))
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return mimetype.Detect(content).String()
}

// EntryPoint picks the navigation document of a bundle: index.html at the
// shallowest depth, else the shallowest .html file, else the first file.
func EntryPoint(files []File) string {
	best := ""
	bestDepth := -1
	htmlBest := ""
	htmlDepth := -1
	for _, f := range files {
		depth := strings.Count(f.Path, "/")
		base := strings.ToLower(path.Base(f.Path))
		if base == "index.html" || base == "index.htm" {
			if bestDepth == -1 || depth < bestDepth {
				best, bestDepth = f.Path, depth
			}
			continue
		}
		if strings.HasSuffix(base, ".html") || strings.HasSuffix(base, ".htm") {
			if htmlDepth == -1 || depth < htmlDepth {
				htmlBest, htmlDepth = f.Path, depth
			}
		}
	}
	if best != "" {
		return best
	}
	if htmlBest != "" {
		return htmlBest
	}
	if len(files) > 0 {
		return files[0].Path
	}
	return ""
}
