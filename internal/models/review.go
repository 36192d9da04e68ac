package models

import "time"

// ReviewAuthor is the subset of a user embedded in review reads.
type ReviewAuthor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Photo string `json:"photo"`
}

type Review struct {
	ID        string        `json:"id"`
	Review    string        `json:"review"`
	Rating    int           `json:"rating"`
	CreatedAt time.Time     `json:"createdAt"`
	TourID    string        `json:"tour"`
	UserID    string        `json:"-"`
	User      *ReviewAuthor `json:"user,omitempty"`
}
