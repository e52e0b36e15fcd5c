// Package domain holds the request/response types shared by the indexing
// and retrieval services, plus boundary validation for them.
package domain

// IndexRequest is a single document to index. Tags become filterable
// payload fields; Properties are stored but never indexed.
type IndexRequest struct {
	ID         string            `json:"id,omitempty"`
	Text       string            `json:"text"`
	Tags       map[string]string `json:"tags,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// IndexResult reports where a document landed. PointID is the id of the
// first chunk; ChunkPointIDs lists every chunk's id in order.
type IndexResult struct {
	PointID       string   `json:"point_id"`
	TotalChunks   int      `json:"total_chunks"`
	ChunkPointIDs []string `json:"chunk_point_ids"`
}

// BatchResult summarises a batch index run. Failures are isolated
// per document and reported in Errors.
type BatchResult struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

// Hit is a single retrieval result. Score is the cosine similarity for
// vector searches and 0 for metadata-only browsing, where no similarity
// is computed.
type Hit struct {
	ID      string         `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}
