package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"onetalk/internal/models"
)

// Package is a purchasable block of extra minutes.
type Package struct {
	Minutes    int
	PriceCents int
}

func (p Package) Price() string {
	return fmt.Sprintf("$%d.%02d", p.PriceCents/100, p.PriceCents%100)
}

func (p Package) String() string { return fmt.Sprintf("%d minutes for %s", p.Minutes, p.Price()) }

var DefaultPackages = []Package{
	{Minutes: 15, PriceCents: 299},
	{Minutes: 30, PriceCents: 499},
	{Minutes: 60, PriceCents: 899},
}

// PaymentGateway captures the seeker's payment for an accepted extension and
// returns a reference to store with the transaction.
type PaymentGateway interface {
	Capture(ctx context.Context, offer models.ExtensionOffer) (string, error)
}

// SimulatedGateway approves every well-formed offer after Delay.
type SimulatedGateway struct {
	Delay time.Duration
}

func (g SimulatedGateway) Capture(ctx context.Context, offer models.ExtensionOffer) (string, error) {
	if offer.Minutes <= 0 || offer.PriceCents <= 0 {
		return "", errors.New("invalid extension offer")
	}
	if g.Delay > 0 {
		t := time.NewTimer(g.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "sim_" + uuid.NewString(), nil
}
