package bundle

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// DataURI encodes binary content as a base64 data: URI with the given media
// type, the storage form for binary bundle assets.
func DataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// IsDataURI reports whether stored content is an embedded data: URI.
func IsDataURI(content string) bool {
	return strings.HasPrefix(content, "data:")
}

// DecodeDataURI decodes an embedded data: URI into its media type and raw
// payload. Both base64 and percent-encoded payloads are handled.
func DecodeDataURI(uri string) (mediaType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URI: missing comma")
	}

	base64Encoded := false
	if enc, found := strings.CutSuffix(meta, ";base64"); found {
		base64Encoded = true
		meta = enc
	}
	mediaType = meta
	if mediaType == "" {
		mediaType = "text/plain;charset=US-ASCII"
	}

	if base64Encoded {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("decode data URI payload: %w", err)
		}
		return mediaType, data, nil
	}

	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("unescape data URI payload: %w", err)
	}
	return mediaType, []byte(unescaped), nil
}
