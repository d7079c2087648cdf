package app

import (
	"fmt"

	"travel_desk/internal/domain"
)

type FieldKind int

const (
	KindString FieldKind = iota
	KindNumber
	KindDate
)

// FieldRule validates every path matching Pattern ([*] spans array
// elements) with a go-playground/validator tag.
type FieldRule struct {
	Pattern string
	Kind    FieldKind
	Tag     string
	Message string // overrides the tag-derived reason
}

// DateRule orders two date fields and derives a day count from them.
type DateRule struct {
	Start    string
	End      string
	Duration string
}

type Schema struct {
	Type             domain.EntityType
	CurrencyPath     string
	Rules            []FieldRule
	Dates            *DateRule
	MoneyFields      []string // major units in the store, minor units in the payload
	RequireMainImage bool
}

var schemas = map[domain.EntityType]Schema{
	domain.EntityTour: {
		Type:         domain.EntityTour,
		CurrencyPath: "currency",
		Rules: []FieldRule{
			{Pattern: "title", Tag: "required,min=3,max=200"},
			{Pattern: "description", Tag: "omitempty,min=10"},
			{Pattern: "destinationId", Tag: "required", Message: "destination must be selected"},
			{Pattern: "currency", Tag: "required,len=3,uppercase"},
			{Pattern: "price", Kind: KindNumber, Tag: "required,gt=0"},
			{Pattern: "discountedPrice", Kind: KindNumber, Tag: "omitempty,gte=0"},
			{Pattern: "singleRoomSupplement", Kind: KindNumber, Tag: "omitempty,gte=0"},
			{Pattern: "maxTravelers", Kind: KindNumber, Tag: "omitempty,gte=1"},
			{Pattern: "startDate", Kind: KindDate, Tag: "required"},
			{Pattern: "endDate", Kind: KindDate, Tag: "required"},
			{Pattern: "duration", Kind: KindNumber, Tag: "omitempty,gte=1"},
			{Pattern: "landmarks[*].name", Tag: "required,min=2"},
			{Pattern: "inclusions[*]", Tag: "required,min=2"},
			{Pattern: "exclusions[*]", Tag: "required,min=2"},
			{Pattern: "faqs[*].question", Tag: "required,min=5"},
			{Pattern: "faqs[*].answer", Tag: "required,min=2"},
			{Pattern: "tiers[*].id", Tag: "required"},
			{Pattern: "tiers[*].surcharge", Kind: KindNumber, Tag: "required,gte=0"},
		},
		Dates:            &DateRule{Start: "startDate", End: "endDate", Duration: "duration"},
		MoneyFields:      []string{"price", "discountedPrice", "singleRoomSupplement", "tiers[*].surcharge"},
		RequireMainImage: true,
	},
	domain.EntityHotel: {
		Type:         domain.EntityHotel,
		CurrencyPath: "currency",
		Rules: []FieldRule{
			{Pattern: "name", Tag: "required,min=3,max=200"},
			{Pattern: "description", Tag: "omitempty,min=10"},
			{Pattern: "destinationId", Tag: "required", Message: "destination must be selected"},
			{Pattern: "address", Tag: "required,min=5"},
			{Pattern: "stars", Kind: KindNumber, Tag: "required,gte=1,lte=5"},
			{Pattern: "currency", Tag: "required,len=3,uppercase"},
			{Pattern: "pricePerNight", Kind: KindNumber, Tag: "required,gt=0"},
			{Pattern: "restaurants[*].name", Tag: "required,min=2"},
			{Pattern: "restaurants[*].cuisineType", Tag: "required"},
			{Pattern: "landmarks[*].name", Tag: "required,min=2"},
			{Pattern: "landmarks[*].distanceKm", Kind: KindNumber, Tag: "omitempty,gte=0"},
			{Pattern: "roomTypes[*].name", Tag: "required,min=2"},
			{Pattern: "roomTypes[*].capacity", Kind: KindNumber, Tag: "required,gte=1"},
			{Pattern: "roomTypes[*].price", Kind: KindNumber, Tag: "required,gt=0"},
			{Pattern: "faqs[*].question", Tag: "required,min=5"},
			{Pattern: "faqs[*].answer", Tag: "required,min=2"},
		},
		MoneyFields:      []string{"pricePerNight", "roomTypes[*].price"},
		RequireMainImage: true,
	},
	domain.EntityPackage: {
		Type:         domain.EntityPackage,
		CurrencyPath: "currency",
		Rules: []FieldRule{
			{Pattern: "title", Tag: "required,min=3,max=200"},
			{Pattern: "description", Tag: "omitempty,min=10"},
			{Pattern: "destinationId", Tag: "required", Message: "destination must be selected"},
			{Pattern: "currency", Tag: "required,len=3,uppercase"},
			{Pattern: "price", Kind: KindNumber, Tag: "required,gt=0"},
			{Pattern: "discountedPrice", Kind: KindNumber, Tag: "omitempty,gte=0"},
			{Pattern: "singleRoomSupplement", Kind: KindNumber, Tag: "omitempty,gte=0"},
			{Pattern: "startDate", Kind: KindDate, Tag: "required"},
			{Pattern: "endDate", Kind: KindDate, Tag: "required"},
			{Pattern: "duration", Kind: KindNumber, Tag: "omitempty,gte=1"},
			{Pattern: "hotels[*].hotelId", Tag: "required", Message: "hotel must be selected"},
			{Pattern: "hotels[*].nights", Kind: KindNumber, Tag: "required,gte=1"},
			{Pattern: "inclusions[*]", Tag: "required,min=2"},
			{Pattern: "tiers[*].id", Tag: "required"},
			{Pattern: "tiers[*].surcharge", Kind: KindNumber, Tag: "required,gte=0"},
		},
		Dates:            &DateRule{Start: "startDate", End: "endDate", Duration: "duration"},
		MoneyFields:      []string{"price", "discountedPrice", "singleRoomSupplement", "tiers[*].surcharge"},
		RequireMainImage: true,
	},
}

func SchemaFor(t domain.EntityType) (Schema, error) {
	s, ok := schemas[t]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q", domain.ErrUnknownEntity, t)
	}
	return s, nil
}
