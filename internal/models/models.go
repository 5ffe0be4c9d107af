package models

// DocumentInfo identifies the document a pipeline stage is working on.
type DocumentInfo struct {
	ID       string
	TenantID string
	Filename string
}

// Chunk is one bounded text window cut from a document page.
type Chunk struct {
	Content    string
	PageNumber int
	ChunkIndex int
}

// RetrievedChunk is a chunk returned by a similarity search, together with
// the metadata the synthesizer needs to label and cite it.
type RetrievedChunk struct {
	Text       string
	PageNumber int
	Filename   string
	Similarity float64
}

// Source points at the document location an answer was grounded on.
type Source struct {
	Document   string  `json:"document"`
	Page       int     `json:"page"`
	Similarity float64 `json:"similarity"`
}

// Answer is the synthesized response plus the chunks it was fed. Sources
// mirror the retrieved chunks exactly; they are not parsed back out of the
// generated text.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Usage is a read-only view of a user's daily request allowance.
type Usage struct {
	CurrentCount int `json:"current_count"`
	Limit        int `json:"limit"`
	Remaining    int `json:"remaining"`
}
