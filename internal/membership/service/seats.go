package service

import (
	"context"
	"fmt"
	"log"
	"strconv"

	orgdomain "firmdesk/backend/internal/organization/domain"
	policyengine "firmdesk/backend/internal/policy/engine"
)

// IncreaseSeats raises the organization's seat cap by additionalSeats after
// verifying payment for the plan's per-seat price, or without payment when
// the billing policy grants an exemption. The cap update is a conditional
// write; it fails closed if a concurrent increase already consumed the
// headroom. Returns the new seat cap.
func (s *MembershipService) IncreaseSeats(ctx context.Context, actorID string, additionalSeats int, paymentID string) (int, error) {
	actor, orgID, err := s.requireAdmin(ctx, actorID)
	if err != nil {
		return 0, err
	}
	if additionalSeats < 1 || additionalSeats > orgdomain.MaxSeatsLimit {
		return 0, fmt.Errorf("%w: additional seats must be between 1 and %d", ErrSeatCapExceeded, orgdomain.MaxSeatsLimit)
	}

	org, err := s.orgRepo.GetByID(ctx, orgID)
	if err != nil {
		return 0, err
	}
	if org == nil {
		return 0, ErrNotAuthorized
	}
	if headroom := orgdomain.MaxSeatsLimit - org.MaxSeats; additionalSeats > headroom {
		return 0, fmt.Errorf("%w: only %d more seats available", ErrSeatCapExceeded, headroom)
	}

	exempt := false
	if s.policy != nil {
		exempt, err = s.policy.PaymentExempt(ctx, policyengine.ExemptionInput{
			ActorID:          actor.ID,
			ActorRole:        string(actor.Role),
			ActorIsOwner:     org.OwnerID == actor.ID,
			OrgID:            org.ID,
			Plan:             string(org.Plan),
			SubscriptionStat: org.SubscriptionStatus,
		})
		if err != nil {
			// Policy failure means no exemption, not a hard error.
			log.Printf("membership: exemption policy evaluation failed for org %s: %v", org.ID, err)
			exempt = false
		}
	}
	if !exempt {
		if err := s.verifySeatPayment(ctx, org, additionalSeats, paymentID); err != nil {
			return 0, err
		}
	}

	newMax, ok, err := s.orgRepo.IncreaseMaxSeats(ctx, orgID, additionalSeats, orgdomain.MaxSeatsLimit)
	if err != nil {
		return 0, err
	}
	if !ok {
		// A concurrent increase consumed the headroom between the read above
		// and the conditional write.
		return 0, fmt.Errorf("%w: seat cap of %d would be exceeded", ErrSeatCapExceeded, orgdomain.MaxSeatsLimit)
	}

	s.logEvent(ctx, orgID, actorID, "seats.increase", "organization:"+orgID,
		`{"additional_seats":`+strconv.Itoa(additionalSeats)+`,"new_max_seats":`+strconv.Itoa(newMax)+`,"exempt":`+strconv.FormatBool(exempt)+`}`)
	return newMax, nil
}

// verifySeatPayment confirms paymentID is captured for at least the plan's
// price of additionalSeats seats.
func (s *MembershipService) verifySeatPayment(ctx context.Context, org *orgdomain.Org, additionalSeats int, paymentID string) error {
	if paymentID == "" {
		return fmt.Errorf("%w: payment id is required", ErrPaymentVerificationFailed)
	}
	if s.verifier == nil {
		return fmt.Errorf("%w: payment gateway not configured", ErrPaymentVerificationFailed)
	}
	p, err := s.verifier.Fetch(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentVerificationFailed, err)
	}
	if p == nil {
		return fmt.Errorf("%w: payment %s not found", ErrPaymentVerificationFailed, paymentID)
	}
	if !p.Captured() {
		return fmt.Errorf("%w: payment %s is %s", ErrPaymentVerificationFailed, paymentID, p.Status)
	}
	required := orgdomain.PricePerSeatCents(org.Plan) * int64(additionalSeats)
	if p.AmountCents < required {
		return fmt.Errorf("%w: payment covers %d cents, %d required", ErrPaymentVerificationFailed, p.AmountCents, required)
	}
	return nil
}
