// Package event defines the immutable lifecycle notifications emitted by
// Workers and Indexers and consumed by the Publisher to reconcile a run.
package event

// Kind discriminates the three lifecycle notifications a document can emit.
type Kind string

const (
	// CREATE announces a child document discovered mid-pipeline.
	CREATE Kind = "CREATE"
	// FINISH announces successful indexing (or, for a dropped document,
	// that it will never reach the Indexer and is accounted for).
	FINISH Kind = "FINISH"
	// FAIL announces a terminal failure.
	FAIL Kind = "FAIL"
)

// Event is an immutable record of a document's lifecycle transition.
type Event struct {
	DocumentID string `json:"document_id"`
	RunID      string `json:"run_id"`
	Kind       Kind   `json:"type"`
	Message    string `json:"message,omitempty"`
}

// NewCreate builds a CREATE event announcing childID under runID.
func NewCreate(childID, runID string) Event {
	return Event{DocumentID: childID, RunID: runID, Kind: CREATE}
}

// NewFinish builds a FINISH event for docID under runID.
func NewFinish(docID, runID string) Event {
	return Event{DocumentID: docID, RunID: runID, Kind: FINISH}
}

// NewFail builds a FAIL event for docID under runID, carrying message.
func NewFail(docID, runID, message string) Event {
	return Event{DocumentID: docID, RunID: runID, Kind: FAIL, Message: message}
}

// SentToDLQMessage is the canonical FAIL message for retry-exhausted
// documents routed to the dead-letter destination.
const SentToDLQMessage = "SENT_TO_DLQ"
