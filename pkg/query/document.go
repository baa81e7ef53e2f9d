package query

// DocumentView is the read-only projection of a stored document the query
// engine operates on; it never mutates the payload it was handed.
type DocumentView struct {
	ID      string
	Payload any
}

// Store is the narrow surface the query engine needs from the document
// store: read everything, or read a specific id set (the planner's index
// hit path). Implemented by storage.Engine.
type Store interface {
	AllDocuments() []DocumentView
	ByIDs(ids []string) []DocumentView
}
