package app

import (
	"fmt"
	"strings"

	"travel_desk/internal/domain"
)

// Quote prices a selection against an offering. It performs no I/O, never
// formats, and does not mutate its inputs.
//
// A discounted price that is not below the base price is treated as no
// discount. Negative counts, unknown tiers and unknown room distributions
// are rejected before any arithmetic.
func Quote(o domain.Offering, s domain.Selection) (domain.PriceQuote, error) {
	cur := strings.ToUpper(o.Currency)
	if cur == "" {
		cur = strings.ToUpper(o.BasePrice.Currency)
	}
	if err := checkOffering(o, cur); err != nil {
		return domain.PriceQuote{}, err
	}
	if err := checkSelection(o, s); err != nil {
		return domain.PriceQuote{}, err
	}

	base := domain.NewMoney(o.BasePrice.Amount, cur)
	effective := base
	discounted := o.DiscountedPrice != nil && o.DiscountedPrice.Amount < base.Amount
	if discounted {
		effective = domain.NewMoney(o.DiscountedPrice.Amount, cur)
	}

	heads := int64(s.Adults + s.Children)

	tier := domain.Zero(cur)
	if s.TierID != "" {
		tier = domain.NewMoney(o.TierSurcharges[s.TierID].Amount, cur)
	}
	perHead := effective.Add(tier).Mul(heads)

	room := domain.Zero(cur)
	if s.RoomDistribution == domain.RoomSingle && s.Adults > 1 {
		room = domain.NewMoney(o.SingleRoomSupplement.Amount, cur)
	}

	discount := domain.Zero(cur)
	if discounted {
		discount = base.Sub(effective).Mul(heads)
	}

	total := perHead.Add(room)

	lines := []domain.QuoteLine{{
		Kind: domain.LineBase, Unit: effective, Quantity: int(heads), Amount: effective.Mul(heads),
	}}
	if !tier.IsZero() {
		lines = append(lines, domain.QuoteLine{
			Kind: domain.LineTier, Unit: tier, Quantity: int(heads), Amount: tier.Mul(heads),
		})
	}
	if !room.IsZero() {
		lines = append(lines, domain.QuoteLine{
			Kind: domain.LineSingleSupplement, Unit: room, Quantity: 1, Amount: room,
		})
	}
	if o.InfantFee != nil && s.Infants > 0 && o.InfantFee.Amount > 0 {
		fee := domain.NewMoney(o.InfantFee.Amount, cur)
		amt := fee.Mul(int64(s.Infants))
		lines = append(lines, domain.QuoteLine{
			Kind: domain.LineInfantFee, Unit: fee, Quantity: s.Infants, Amount: amt,
		})
		total = total.Add(amt)
	}
	if !discount.IsZero() {
		lines = append(lines, domain.QuoteLine{
			Kind: domain.LineDiscount, Unit: base.Sub(effective), Quantity: int(heads),
			Amount: discount, Informational: true,
		})
	}

	return domain.PriceQuote{
		Currency:      cur,
		BasePrice:     base,
		EffectiveUnit: effective,
		TierSurcharge: tier,
		RoomSurcharge: room,
		DiscountLine:  discount,
		PayingHeads:   int(heads),
		PerHeadTotal:  perHead,
		Selection:     s,
		Lines:         lines,
		Total:         total,
	}, nil
}

func checkOffering(o domain.Offering, cur string) error {
	if cur == "" {
		return fmt.Errorf("%w: offering has no currency", domain.ErrCurrencyMismatch)
	}
	same := func(name string, m domain.Money) error {
		// an unset currency on a zero amount is the zero value, not a mismatch
		if m.Currency == "" && m.Amount == 0 {
			return nil
		}
		if !strings.EqualFold(m.Currency, cur) {
			return fmt.Errorf("%w: %s is %q, offering is %q", domain.ErrCurrencyMismatch, name, m.Currency, cur)
		}
		if m.Amount < 0 {
			return &domain.SelectionError{Reason: name + " is negative"}
		}
		return nil
	}
	if err := same("basePrice", o.BasePrice); err != nil {
		return err
	}
	if o.DiscountedPrice != nil {
		if err := same("discountedPrice", *o.DiscountedPrice); err != nil {
			return err
		}
	}
	if err := same("singleRoomSupplement", o.SingleRoomSupplement); err != nil {
		return err
	}
	if o.InfantFee != nil {
		if err := same("infantFee", *o.InfantFee); err != nil {
			return err
		}
	}
	for id, m := range o.TierSurcharges {
		if err := same("tier "+id, m); err != nil {
			return err
		}
	}
	return nil
}

func checkSelection(o domain.Offering, s domain.Selection) error {
	switch {
	case s.Adults < 0:
		return &domain.SelectionError{Reason: "adults must not be negative"}
	case s.Children < 0:
		return &domain.SelectionError{Reason: "children must not be negative"}
	case s.Infants < 0:
		return &domain.SelectionError{Reason: "infants must not be negative"}
	}
	if s.TierID != "" {
		if _, ok := o.TierSurcharges[s.TierID]; !ok {
			return &domain.SelectionError{Reason: fmt.Sprintf("unknown tier %q", s.TierID)}
		}
	}
	switch s.RoomDistribution {
	case domain.RoomAny, domain.RoomSingle, domain.RoomDouble, domain.RoomTriple:
	default:
		return &domain.SelectionError{Reason: fmt.Sprintf("unknown room distribution %q", s.RoomDistribution)}
	}
	return nil
}
