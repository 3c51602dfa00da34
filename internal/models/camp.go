package models

import "time"

// Camp is a scheduled medical camp participants register for.
type Camp struct {
	ID                     string     `json:"_id,omitempty"`
	Title                  string     `json:"title"`
	Date                   string     `json:"date"`
	Time                   string     `json:"time"`
	Location               string     `json:"location"`
	Fees                   float64    `json:"fees"`
	HealthcareProfessional string     `json:"healthcareProfessional,omitempty"`
	Description            string     `json:"description,omitempty"`
	Images                 []string   `json:"images"`
	ParticipantCount       int64      `json:"participant_count"`
	OrganizerEmail         string     `json:"organizerEmail,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              *time.Time `json:"updatedAt,omitempty"`
}
