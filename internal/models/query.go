package models

import "time"

type QuerySpec struct {
	From           *time.Time
	To             *time.Time
	MetadataQuery  Metadata
	Page           int
	PageSize       int
	ReturnMetadata bool
}

// CanonicalQuery is the backend-agnostic filter compiled from a QuerySpec.
// AddedAfter and AddedBefore are exclusive bounds.
type CanonicalQuery struct {
	Account     string
	AddedAfter  *time.Time
	AddedBefore *time.Time
	Metadata    Metadata
}

type SortOrder int

const (
	SortAddedDesc SortOrder = iota
	SortUpdatedDesc
)

type Paging struct {
	Sort  SortOrder
	Limit int
	Skip  int
}
