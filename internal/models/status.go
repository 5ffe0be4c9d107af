package models

// DocumentStatus tracks a document through the ingestion pipeline.
type DocumentStatus string

const (
	StatusUploading  DocumentStatus = "uploading"
	StatusExtracting DocumentStatus = "extracting"
	StatusChunking   DocumentStatus = "chunking"
	StatusEmbedding  DocumentStatus = "embedding"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// statusRank orders the linear pipeline stages. Terminal states have no rank.
var statusRank = map[DocumentStatus]int{
	StatusUploading:  0,
	StatusExtracting: 1,
	StatusChunking:   2,
	StatusEmbedding:  3,
	StatusCompleted:  4,
}

// IsTerminal reports whether no further status change is allowed.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a document may move from one status to
// another. The pipeline only ever moves forward; failed is reachable from
// any non-terminal state.
func CanTransition(from, to DocumentStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}
