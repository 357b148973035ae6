package domain

import "github.com/google/uuid"

// ListFilter narrows a job listing. Cursor is the id of the last job of the
// previous page: ids are UUIDv7 so keyset pagination on id follows creation
// order without a separate sort column.
type ListFilter struct {
	Status        *Status
	CustomerID    *int64
	CreatedByUser *string
	Cursor        *uuid.UUID
	Limit         int
}

// SummaryFilter narrows the per-status counts.
type SummaryFilter struct {
	CustomerID    *int64
	CreatedByUser *string
}

// Page is one page of a job listing. NextCursor is nil on the last page.
type Page struct {
	Items      []*Job
	NextCursor *uuid.UUID
}
