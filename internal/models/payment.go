package models

import "time"

// Payment is an append-only ledger entry for a completed registration payment.
type Payment struct {
	ID             string    `json:"_id,omitempty"`
	Email          string    `json:"email"`
	CampName       string    `json:"campName"`
	RegistrationID string    `json:"registrationId,omitempty"`
	Amount         float64   `json:"amount"`
	Status         string    `json:"status"`
	TransactionID  string    `json:"transactionId"`
	PaymentDate    string    `json:"paymentDate"`
	CreatedAt      time.Time `json:"createdAt"`
}
