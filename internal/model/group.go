package model

import "time"

// Group is a user-defined collection of photos.
type Group struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Membership records that a photo belongs to a group.
type Membership struct {
	PhotoID string    `json:"photoId,omitempty"`
	GroupID string    `json:"groupId"`
	AddedAt time.Time `json:"addedAt"`
}

// GroupPhoto is a photo listed inside a group.
type GroupPhoto struct {
	ID        string        `json:"id"`
	Filename  string        `json:"filename"`
	AddedAt   time.Time     `json:"addedAt"`
	Thumb     *PhotoVersion `json:"thumb"`
	Optimized *PhotoVersion `json:"optimized"`
}
