package models

import "time"

// Note is a maintenance request submitted by a resident.
type Note struct {
	ID          int64
	AuthorID    int64
	Title       string
	Description string
	// ImagePath is the public path or storage key of the attached photo; empty when none.
	ImagePath string
	Status    Status
	CreatedAt time.Time

	// AuthorName is joined from users on reads.
	AuthorName string
}
