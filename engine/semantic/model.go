package semantic

// Record is a single point to store: a deterministic id, its embedding,
// and the non-vector payload.
type Record struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Payload field names are a versioned contract shared by indexing and
// retrieval. Renaming any of them breaks compatibility with previously
// indexed data and must be treated as a migration.
const (
	// KeyText stores the original chunk text.
	KeyText = "text"
	// KeyIndexedAtMs stores the indexing timestamp in Unix milliseconds.
	KeyIndexedAtMs = "indexed_at_ms"
	// TagPrefix namespaces filterable tag fields (tag_{key}).
	TagPrefix = "tag_"
	// PropPrefix namespaces informational property fields (prop_{key}).
	PropPrefix = "prop_"

	// Chunk linkage, present only when a document was split.
	KeySourceDocID = "source_doc_id"
	KeyChunkIndex  = "chunk_index"
	KeyTotalChunks = "total_chunks"
)
