package domain

const (
	RoomAny    = ""
	RoomSingle = "single"
	RoomDouble = "double"
	RoomTriple = "triple"
)

// Offering is a priced catalog item as seen by the booking page.
type Offering struct {
	Currency             string           `json:"currency"`
	BasePrice            Money            `json:"basePrice"`
	DiscountedPrice      *Money           `json:"discountedPrice,omitempty"`
	TierSurcharges       map[string]Money `json:"tierSurcharges,omitempty"`
	SingleRoomSupplement Money            `json:"singleRoomSupplement"`
	InfantFee            *Money           `json:"infantFee,omitempty"`
}

type Selection struct {
	Adults           int    `json:"adults"`
	Children         int    `json:"children"`
	Infants          int    `json:"infants"`
	RoomDistribution string `json:"roomDistribution"`
	TierID           string `json:"tierId"`
}

type LineKind string

const (
	LineBase             LineKind = "base"
	LineTier             LineKind = "tier"
	LineSingleSupplement LineKind = "single_supplement"
	LineInfantFee        LineKind = "infant_fee"
	LineDiscount         LineKind = "discount"
)

// QuoteLine is one itemized entry. Informational lines (the discount)
// are already netted into other lines and are not summed again.
type QuoteLine struct {
	Kind          LineKind `json:"kind"`
	Unit          Money    `json:"unit"`
	Quantity      int      `json:"quantity"`
	Amount        Money    `json:"amount"`
	Informational bool     `json:"informational,omitempty"`
}

type PriceQuote struct {
	Currency      string      `json:"currency"`
	BasePrice     Money       `json:"basePrice"`
	EffectiveUnit Money       `json:"effectiveUnit"`
	TierSurcharge Money       `json:"tierSurcharge"`
	RoomSurcharge Money       `json:"roomSurcharge"`
	DiscountLine  Money       `json:"discountLine"`
	PayingHeads   int         `json:"payingHeads"`
	PerHeadTotal  Money       `json:"perHeadTotal"`
	Selection     Selection   `json:"selection"`
	Lines         []QuoteLine `json:"lines"`
	Total         Money       `json:"total"`
}
