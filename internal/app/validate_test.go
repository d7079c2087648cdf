package app_test

import (
	"testing"

	"travel_desk/internal/app"
	"travel_desk/internal/domain"
)

func tourSchema(t *testing.T) app.Schema {
	t.Helper()
	sc, err := app.SchemaFor(domain.EntityTour)
	if err != nil {
		t.Fatal(err)
	}
	return sc
}

func validTour(t *testing.T) (*app.FieldStore, *app.ImageLedger) {
	t.Helper()
	fs := app.NewFieldStore()
	for k, v := range map[string]any{
		"title":         "Cappadocia Balloons",
		"destinationId": "dest-1",
		"currency":      "USD",
		"price":         2700,
		"startDate":     "2025-05-01",
		"endDate":       "2025-05-07",
	} {
		if err := fs.Set(k, v); err != nil {
			t.Fatal(err)
		}
	}
	l := app.NewImageLedger(nil, "uploads")
	if _, err := l.AttachPersisted("/uploads/main.jpg", domain.RoleMain); err != nil {
		t.Fatal(err)
	}
	return fs, l
}

func reasonAt(res app.ValidationResult, path string) string {
	for _, e := range res.Errors {
		if e.Path == path {
			return e.Reason
		}
	}
	return ""
}

func TestValidate_OK(t *testing.T) {
	fs, l := validTour(t)
	res, err := app.Validate(tourSchema(t), fs, l)
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK() {
		t.Fatalf("unexpected errors: %+v", res.Errors)
	}
	if res.Err() != nil {
		t.Fatal("Err() should be nil when OK")
	}
}

func TestValidate_DurationOverridesManualValue(t *testing.T) {
	fs, l := validTour(t)
	_ = fs.Set("duration", 3)

	if _, err := app.Validate(tourSchema(t), fs, l); err != nil {
		t.Fatal(err)
	}
	got, _ := fs.Get("duration")
	if got != float64(7) {
		t.Fatalf("duration = %#v, want 7", got)
	}
}

func TestValidate_EndBeforeStart(t *testing.T) {
	fs, l := validTour(t)
	_ = fs.Set("duration", 3)
	_ = fs.Set("endDate", "2025-04-28")

	res, err := app.Validate(tourSchema(t), fs, l)
	if err != nil {
		t.Fatal(err)
	}
	if reasonAt(res, "endDate") != "end date must not be before start date" {
		t.Fatalf("errors = %+v", res.Errors)
	}
	if got, _ := fs.Get("duration"); got != float64(3) {
		t.Fatalf("duration recomputed from unordered dates: %#v", got)
	}
}

func TestValidate_FieldMessages(t *testing.T) {
	fs, l := validTour(t)
	_ = fs.Set("destinationId", "")
	_ = fs.Set("price", 0)
	_ = fs.Set("currency", "usd")
	_, _ = fs.AppendChild("landmarks", map[string]any{"name": "A"})
	_, _ = fs.AppendChild("faqs", map[string]any{"question": "Is lunch included?"})

	res, err := app.Validate(tourSchema(t), fs, l)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"destinationId":     "destination must be selected",
		"price":             "must be greater than 0",
		"currency":          "must be uppercase",
		"landmarks[0].name": "must be at least 2 characters",
		"faqs[0].answer":    "is required",
	}
	for path, reason := range want {
		if got := reasonAt(res, path); got != reason {
			t.Errorf("%s: got %q, want %q", path, got, reason)
		}
	}
	if _, ok := res.Err().(*domain.ValidationError); !ok {
		t.Fatalf("Err() = %T", res.Err())
	}
}

func TestValidate_MainImage(t *testing.T) {
	fs, _ := validTour(t)

	empty := app.NewImageLedger(nil, "uploads")
	res, _ := app.Validate(tourSchema(t), fs, empty)
	if reasonAt(res, "imageUrl") != "main image is required" {
		t.Fatalf("errors = %+v", res.Errors)
	}

	galleryOnly := app.NewImageLedger(nil, "uploads")
	_, _ = galleryOnly.AttachPersisted("/uploads/g.jpg", domain.RoleGallery)
	res, _ = app.Validate(tourSchema(t), fs, galleryOnly)
	if reasonAt(res, "imageUrl") != "main image must be selected" {
		t.Fatalf("errors = %+v", res.Errors)
	}
}

func TestValidate_NumericStrings(t *testing.T) {
	fs, l := validTour(t)
	_ = fs.Set("price", "2700.50")
	_ = fs.Set("maxTravelers", "abc")

	res, _ := app.Validate(tourSchema(t), fs, l)
	if r := reasonAt(res, "price"); r != "" {
		t.Fatalf("numeric string price rejected: %q", r)
	}
	if reasonAt(res, "maxTravelers") != "must be a number" {
		t.Fatalf("errors = %+v", res.Errors)
	}
}

func TestValidate_MoneyPrecision(t *testing.T) {
	fs, l := validTour(t)
	_ = fs.Set("price", "2700.999")

	res, _ := app.Validate(tourSchema(t), fs, l)
	if r := reasonAt(res, "price"); r != "amount 2700.999 has more than 2 decimals for USD" {
		t.Fatalf("price reason = %q, errors = %+v", r, res.Errors)
	}

	_ = fs.Set("currency", "JPY")
	_ = fs.Set("price", 12000.5)
	res, _ = app.Validate(tourSchema(t), fs, l)
	if reasonAt(res, "price") == "" {
		t.Fatalf("sub-yen price accepted: %+v", res.Errors)
	}
}

func TestValidate_CommaDecimalMatchesPayload(t *testing.T) {
	fs, l := validTour(t)
	_ = fs.Set("price", "2700,50")

	res, _ := app.Validate(tourSchema(t), fs, l)
	if !res.OK() {
		t.Fatalf("comma decimal rejected: %+v", res.Errors)
	}
	sc := tourSchema(t)
	p, err := app.BuildPayload(sc, fs.Values(), domain.ImageSet{MainURL: "/uploads/main.jpg"})
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}
	if p["price"] != int64(270050) {
		t.Fatalf("price = %v (%T)", p["price"], p["price"])
	}
}
