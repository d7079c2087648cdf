package httpserver

import (
	"net/http"

	"github.com/shopspring/decimal"

	"travel_desk/internal/adapters/observability"
	"travel_desk/internal/app"
	"travel_desk/internal/domain"
)

// Amounts arrive in major units, as numbers or strings ("1000.00").
type quoteRequest struct {
	Offering struct {
		Currency             string                     `json:"currency"`
		BasePrice            decimal.Decimal            `json:"basePrice"`
		DiscountedPrice      *decimal.Decimal           `json:"discountedPrice"`
		TierSurcharges       map[string]decimal.Decimal `json:"tierSurcharges"`
		SingleRoomSupplement decimal.Decimal            `json:"singleRoomSupplement"`
		InfantFee            *decimal.Decimal           `json:"infantFee"`
	} `json:"offering"`
	Selection domain.Selection `json:"selection"`
}

type quoteLineView struct {
	Kind          domain.LineKind `json:"kind"`
	Unit          displayMoney    `json:"unit"`
	Quantity      int             `json:"quantity"`
	Amount        displayMoney    `json:"amount"`
	Informational bool            `json:"informational,omitempty"`
}

type quoteResponse struct {
	Currency      string           `json:"currency"`
	EffectiveUnit displayMoney     `json:"effectiveUnit"`
	PayingHeads   int              `json:"payingHeads"`
	PerHeadTotal  displayMoney     `json:"perHeadTotal"`
	TierSurcharge displayMoney     `json:"tierSurcharge"`
	RoomSurcharge displayMoney     `json:"roomSurcharge"`
	Discount      displayMoney     `json:"discount"`
	Lines         []quoteLineView  `json:"lines"`
	Total         displayMoney     `json:"total"`
	Selection     domain.Selection `json:"selection"`
}

func (req quoteRequest) offering() (domain.Offering, error) {
	cur := req.Offering.Currency
	conv := func(d decimal.Decimal) (domain.Money, error) { return domain.FromMajor(d, cur) }

	var (
		o   = domain.Offering{Currency: cur}
		err error
	)
	if o.BasePrice, err = conv(req.Offering.BasePrice); err != nil {
		return o, &domain.SelectionError{Reason: "basePrice: " + err.Error()}
	}
	if req.Offering.DiscountedPrice != nil {
		m, err := conv(*req.Offering.DiscountedPrice)
		if err != nil {
			return o, &domain.SelectionError{Reason: "discountedPrice: " + err.Error()}
		}
		o.DiscountedPrice = &m
	}
	if o.SingleRoomSupplement, err = conv(req.Offering.SingleRoomSupplement); err != nil {
		return o, &domain.SelectionError{Reason: "singleRoomSupplement: " + err.Error()}
	}
	if req.Offering.InfantFee != nil {
		m, err := conv(*req.Offering.InfantFee)
		if err != nil {
			return o, &domain.SelectionError{Reason: "infantFee: " + err.Error()}
		}
		o.InfantFee = &m
	}
	if len(req.Offering.TierSurcharges) > 0 {
		o.TierSurcharges = make(map[string]domain.Money, len(req.Offering.TierSurcharges))
		for id, d := range req.Offering.TierSurcharges {
			m, err := conv(d)
			if err != nil {
				return o, &domain.SelectionError{Reason: "tierSurcharges." + id + ": " + err.Error()}
			}
			o.TierSurcharges[id] = m
		}
	}
	return o, nil
}

func (h *Handlers) quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Offering.Currency == "" {
		observability.ObserveQuote("invalid")
		writeProblem(w, http.StatusBadRequest, "Bad Request", "offering.currency is required")
		return
	}
	o, err := req.offering()
	if err != nil {
		observability.ObserveQuote("invalid")
		writeError(w, r, err)
		return
	}
	q, err := app.Quote(o, req.Selection)
	if err != nil {
		observability.ObserveQuote("invalid")
		writeError(w, r, err)
		return
	}
	observability.ObserveQuote("ok")

	out := quoteResponse{
		Currency:      q.Currency,
		EffectiveUnit: display(q.EffectiveUnit),
		PayingHeads:   q.PayingHeads,
		PerHeadTotal:  display(q.PerHeadTotal),
		TierSurcharge: display(q.TierSurcharge),
		RoomSurcharge: display(q.RoomSurcharge),
		Discount:      display(q.DiscountLine),
		Lines:         make([]quoteLineView, 0, len(q.Lines)),
		Total:         display(q.Total),
		Selection:     q.Selection,
	}
	for _, l := range q.Lines {
		out.Lines = append(out.Lines, quoteLineView{
			Kind: l.Kind, Unit: display(l.Unit), Quantity: l.Quantity,
			Amount: display(l.Amount), Informational: l.Informational,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
