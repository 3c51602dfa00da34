package registrations

import (
	"fmt"

	"github.com/medcamp-hub/backend/internal/models"
	"github.com/medcamp-hub/backend/pkg/apperr"
)

// allowedTransitions lists the confirmation status edges a status update may take.
// cancelled is terminal. Re-applying the current status is always accepted.
var allowedTransitions = map[string]map[string]bool{
	models.ConfirmationPending: {
		models.ConfirmationConfirmed: true,
		models.ConfirmationCancelled: true,
	},
	models.ConfirmationConfirmed: {
		models.ConfirmationCancelled: true,
	},
	models.ConfirmationCancelled: {},
}

// checkTransition validates moving reg to the confirmation status next.
func checkTransition(reg *models.Registration, next string) error {
	if _, known := allowedTransitions[next]; !known {
		return apperr.Validation(fmt.Sprintf("unknown confirmation status %q", next))
	}
	current := reg.ConfirmationStatus
	if current == "" {
		current = models.ConfirmationPending
	}
	if current == next {
		return nil
	}
	if !allowedTransitions[current][next] {
		return apperr.Validation(fmt.Sprintf("cannot change confirmation status from %s to %s", current, next))
	}
	if next == models.ConfirmationConfirmed && reg.PaymentStatus != models.PaymentPaid {
		return apperr.Validation("registration must be paid before it can be confirmed")
	}
	return nil
}
