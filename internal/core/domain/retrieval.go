package domain

// Filter restricts index operations to the chunks of one document.
type Filter struct {
	FileID string
}

// IndexRecord is one chunk as written to the vector index.
type IndexRecord struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata ChunkMetadata
}

type RetrievedChunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"-"`
	Score    float64       `json:"score"`
}

// Citation points at one retrieved chunk with a short snippet of its text.
type Citation struct {
	Page    *int   `json:"page"`
	Snippet string `json:"snippet"`
}

type Answer struct {
	Text       string     `json:"answer"`
	ChunksUsed []Citation `json:"chunks_used"`
	ControlID  string     `json:"control_id,omitempty"`
}
