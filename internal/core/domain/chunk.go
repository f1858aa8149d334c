package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Payload keys used for chunk metadata in the vector index.
const (
	MetaFileID           = "file_id"
	MetaChunkIndex       = "chunk_index"
	MetaPage             = "page"
	MetaParagraphIndices = "paragraph_indices"
	MetaChunkID          = "chunk_id"
)

// Chunk is one retrieval unit produced by the chunker.
type Chunk struct {
	Text     string
	Metadata ChunkMetadata
}

// ChunkMetadata describes where a chunk came from. Page is nil when the chunk
// spans pages or the page is unknown; ParagraphIndices is empty for chunks
// cut on word windows.
type ChunkMetadata struct {
	FileID           string
	ChunkIndex       int
	Page             *int
	ParagraphIndices []int
}

// ChunkID is the index identifier of chunk number index of a document.
func ChunkID(fileID string, index int) string {
	return fmt.Sprintf("%s_%d", fileID, index)
}

// Scalars flattens the metadata into primitive values accepted by the index.
func (m ChunkMetadata) Scalars() map[string]any {
	raw := map[string]any{
		MetaFileID:     m.FileID,
		MetaChunkIndex: m.ChunkIndex,
	}
	if m.Page != nil {
		raw[MetaPage] = *m.Page
	}
	if len(m.ParagraphIndices) > 0 {
		raw[MetaParagraphIndices] = m.ParagraphIndices
	}
	return CleanMetadata(raw)
}

// CleanMetadata drops nil values, joins list values with commas and
// stringifies anything that is not a string, number or bool.
func CleanMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if clean, ok := ScalarSafe(v); ok {
			out[k] = clean
		}
	}
	return out
}

// ScalarSafe converts v to an index-safe primitive. The second result is false
// when the value must be dropped.
func ScalarSafe(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case string, bool, int, int32, int64, uint32, uint64, float32, float64:
		return val, true
	case *int:
		if val == nil {
			return nil, false
		}
		return *val, true
	case []int:
		parts := make([]string, 0, len(val))
		for _, n := range val {
			parts = append(parts, strconv.Itoa(n))
		}
		return strings.Join(parts, ","), true
	case []string:
		return strings.Join(val, ","), true
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ","), true
	default:
		return fmt.Sprint(val), true
	}
}

// MetadataFromScalars is the inverse of Scalars for payloads read back from
// the index. Unknown or malformed fields are ignored.
func MetadataFromScalars(payload map[string]any) ChunkMetadata {
	meta := ChunkMetadata{}
	if v, ok := payload[MetaFileID]; ok {
		meta.FileID = fmt.Sprint(v)
	}
	if n, ok := intFromScalar(payload[MetaChunkIndex]); ok {
		meta.ChunkIndex = n
	}
	if n, ok := intFromScalar(payload[MetaPage]); ok {
		page := n
		meta.Page = &page
	}
	if s, ok := payload[MetaParagraphIndices].(string); ok && s != "" {
		for _, part := range strings.Split(s, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				continue
			}
			meta.ParagraphIndices = append(meta.ParagraphIndices, n)
		}
	}
	return meta
}

func intFromScalar(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
