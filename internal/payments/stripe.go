package payments

import (
	"context"
	"fmt"
	"os"
	"strconv"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// UnitPriceCents is the price of one energy unit in a refill pack.
const UnitPriceCents = 5

// RefillClient wraps stripe-go PaymentIntent flows for energy refill
// purchases: the intent is created with a manual capture hold, and the
// balance is credited only when the hold is captured.
type RefillClient struct{}

// NewRefillClient initializes the stripe client with the STRIPE_API_KEY env var.
func NewRefillClient() *RefillClient {
	stripe.Key = os.Getenv("STRIPE_API_KEY")
	return &RefillClient{}
}

// CreateRefillIntent holds funds for an energy pack and returns the
// PaymentIntent ID. The user and unit count ride along as metadata so the
// confirm step knows whom to credit.
func (c *RefillClient) CreateRefillIntent(ctx context.Context, userID string, units int) (string, error) {
	if units <= 0 {
		return "", fmt.Errorf("payments: refill units must be positive, got %d", units)
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(units) * UnitPriceCents),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	params.AddMetadata("user_id", userID)
	params.AddMetadata("energy_units", strconv.Itoa(units))
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// ConfirmRefill captures the hold and returns the user and unit count to
// credit.
func (c *RefillClient) ConfirmRefill(ctx context.Context, intentID string) (string, int, error) {
	pi, err := paymentintent.Capture(intentID, nil)
	if err != nil {
		return "", 0, err
	}
	userID := pi.Metadata["user_id"]
	units, convErr := strconv.Atoi(pi.Metadata["energy_units"])
	if userID == "" || convErr != nil {
		return "", 0, fmt.Errorf("payments: intent %s missing refill metadata", intentID)
	}
	return userID, units, nil
}

// CancelRefill releases the hold without crediting.
func (c *RefillClient) CancelRefill(ctx context.Context, intentID string) error {
	_, err := paymentintent.Cancel(intentID, nil)
	return err
}
