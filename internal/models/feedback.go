package models

import "time"

// Feedback is a participant's rating of a camp.
type Feedback struct {
	ID               string    `json:"_id,omitempty"`
	CampID           string    `json:"campId"`
	CampName         string    `json:"campName,omitempty"`
	ParticipantEmail string    `json:"participantEmail"`
	ParticipantName  string    `json:"participantName,omitempty"`
	Rating           int       `json:"rating"`
	Comment          string    `json:"comment,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}
