package models

import "time"

// Payment states of a registration.
const (
	PaymentUnpaid = "unpaid"
	PaymentPaid   = "paid"
)

// Confirmation states of a registration.
const (
	ConfirmationPending   = "pending"
	ConfirmationConfirmed = "confirmed"
	ConfirmationCancelled = "cancelled"
)

// Registration is a participant's claim on a camp. CampName, CampFees and Location are copied
// from the camp when the registration is created.
type Registration struct {
	ID                 string    `json:"_id,omitempty"`
	CampID             string    `json:"campId"`
	CampName           string    `json:"campName"`
	CampFees           float64   `json:"campFees"`
	Location           string    `json:"location,omitempty"`
	ParticipantEmail   string    `json:"participantEmail"`
	ParticipantName    string    `json:"participantName"`
	Age                int       `json:"age,omitempty"`
	Phone              string    `json:"phone,omitempty"`
	Gender             string    `json:"gender,omitempty"`
	EmergencyContact   string    `json:"emergencyContact,omitempty"`
	PaymentStatus      string    `json:"paymentStatus"`
	ConfirmationStatus string    `json:"confirmationStatus"`
	TransactionID      string    `json:"transactionId,omitempty"`
	PaymentDate        string    `json:"paymentDate,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}
