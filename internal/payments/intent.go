package payments

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// IntentRequest describes a payment intent to create with the payment provider.
type IntentRequest struct {
	AmountCents int64
	Currency    string
	Email       string
	CampID      string
}

// IntentCreator creates payment intents with an external provider.
type IntentCreator interface {
	CreateIntent(ctx context.Context, req IntentRequest) (clientSecret string, err error)
}

// StripeIntents creates card payment intents through the Stripe API.
type StripeIntents struct {
	api *client.API
}

// NewStripeIntents creates a Stripe-backed IntentCreator.
func NewStripeIntents(secretKey string) *StripeIntents {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeIntents{api: api}
}

// CreateIntent creates a card payment intent and returns its client secret.
func (s *StripeIntents) CreateIntent(ctx context.Context, req IntentRequest) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountCents),
		Currency:           stripe.String(req.Currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
		params.AddMetadata("email", req.Email)
	}
	if req.CampID != "" {
		params.AddMetadata("camp_id", req.CampID)
	}
	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create payment intent: %w", err)
	}
	return pi.ClientSecret, nil
}
