// Package blob extracts inline base64 attachments from message and
// tool payloads into a content-addressed side map, so the emitted
// transcript never embeds raw binary data.
package blob

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"maps"
	"slices"
	"strings"
)

// Blob is one extracted binary payload. Identity is the SHA-256 of the
// bytes; identical attachments collapse to one entry no matter how many
// messages reference them.
type Blob struct {
	Data      []byte
	MediaType string
}

// Ref replaces an inline image node after extraction.
type Ref struct {
	Sha256    string `json:"sha256"`
	MediaType string `json:"mediaType"`
}

// Set accumulates blobs for one conversion. It is not safe for
// concurrent use; a conversion is single-threaded by contract.
type Set struct {
	blobs map[string]Blob
}

func NewSet() *Set {
	return &Set{blobs: make(map[string]Blob)}
}

// Put stores data under its digest and returns the hex digest. Existing
// entries are left alone, which is what deduplicates identical bytes.
func (s *Set) Put(data []byte, mediaType string) string {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	if _, ok := s.blobs[digest]; !ok {
		s.blobs[digest] = Blob{Data: data, MediaType: mediaType}
	}
	return digest
}

// Blobs hands the accumulated map to the caller, who owns it after the
// conversion returns.
func (s *Set) Blobs() map[string]Blob {
	return s.blobs
}

func (s *Set) Len() int {
	return len(s.blobs)
}

// ExtractImages walks a decoded JSON value and replaces every inline
// base64 image node with a reference object, decoding the bytes into
// the set. The same walk serves top-level message content and nested
// tool input/output. The value is transformed in place where possible
// and also returned.
func ExtractImages(v any, set *Set) any {
	switch node := v.(type) {
	case map[string]any:
		if data, mediaType, ok := imageNode(node); ok {
			raw, err := base64.StdEncoding.DecodeString(data)
			if err != nil {
				// Leave undecodable nodes untouched rather than fail
				// the conversion.
				return node
			}
			digest := set.Put(raw, mediaType)
			return map[string]any{
				"type":      "image",
				"sha256":    digest,
				"mediaType": mediaType,
			}
		}
		for key, val := range node {
			node[key] = ExtractImages(val, set)
		}
		return node
	case []any:
		for i, val := range node {
			node[i] = ExtractImages(val, set)
		}
		return node
	default:
		return v
	}
}

// ExtractDataURL decodes a "data:<mediatype>;base64,<data>" string into
// the set and returns its reference. Producers that attach images as
// data URLs (rather than structured nodes) go through here.
func ExtractDataURL(url string, set *Set) (Ref, bool) {
	if !strings.HasPrefix(url, "data:") {
		return Ref{}, false
	}
	rest := url[len("data:"):]
	idx := strings.Index(rest, ";base64,")
	if idx == -1 {
		return Ref{}, false
	}
	mediaType := rest[:idx]
	raw, err := base64.StdEncoding.DecodeString(rest[idx+len(";base64,"):])
	if err != nil {
		return Ref{}, false
	}
	digest := set.Put(raw, mediaType)
	return Ref{Sha256: digest, MediaType: mediaType}, true
}

// CollectRefs walks an already-sanitized value and returns every image
// reference it carries, for display-layer use.
func CollectRefs(v any) []Ref {
	var refs []Ref
	collectRefs(v, &refs)
	return refs
}

func collectRefs(v any, refs *[]Ref) {
	switch node := v.(type) {
	case map[string]any:
		if node["type"] == "image" {
			digest, _ := node["sha256"].(string)
			mediaType, _ := node["mediaType"].(string)
			if digest != "" {
				*refs = append(*refs, Ref{Sha256: digest, MediaType: mediaType})
				return
			}
		}
		// Sorted keys keep ref order stable across conversions.
		for _, key := range slices.Sorted(maps.Keys(node)) {
			collectRefs(node[key], refs)
		}
	case []any:
		for _, val := range node {
			collectRefs(val, refs)
		}
	}
}

// imageNode recognizes the producer shape for an inline image:
//
//	{"type": "image", "source": {"type": "base64", "media_type": ..., "data": ...}}
func imageNode(node map[string]any) (data, mediaType string, ok bool) {
	if node["type"] != "image" {
		return "", "", false
	}
	source, _ := node["source"].(map[string]any)
	if source == nil || source["type"] != "base64" {
		return "", "", false
	}
	data, _ = source["data"].(string)
	mediaType, _ = source["media_type"].(string)
	if data == "" {
		return "", "", false
	}
	if mediaType == "" {
		mediaType = "image/png"
	}
	return data, mediaType, true
}
