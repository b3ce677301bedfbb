package models

import "time"

// ClassRoom represents a physical room schedules can be assigned to.
type ClassRoom struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Grade     string    `db:"grade" json:"grade"`
	Capacity  int       `db:"capacity" json:"capacity"`
	Location  *string   `db:"location" json:"location,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassRoomFilter defines filter criteria for listing classrooms.
type ClassRoomFilter struct {
	Grade       string
	MinCapacity int
	Active      *bool
	Search      string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
