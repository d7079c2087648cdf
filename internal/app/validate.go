package app

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"travel_desk/internal/domain"
)

var validate = validator.New()

// ValidationResult is empty when the draft is valid.
type ValidationResult struct {
	Errors []domain.FieldError `json:"errors"`
}

func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

func (r ValidationResult) Err() error {
	if r.OK() {
		return nil
	}
	return &domain.ValidationError{Fields: r.Errors}
}

// Validate runs field and cross-field rules. When both dates are present
// and ordered, the duration field is recomputed as whole days + 1 and
// overrides whatever was typed. User-input problems come back as data;
// only a malformed schema path returns an error.
func Validate(sc Schema, fields *FieldStore, images *ImageLedger) (ValidationResult, error) {
	var res ValidationResult
	add := func(path, reason string) {
		res.Errors = append(res.Errors, domain.FieldError{Path: path, Reason: reason})
	}

	if sc.Dates != nil {
		if err := applyDates(*sc.Dates, fields, add); err != nil {
			return ValidationResult{}, err
		}
	}

	for _, r := range sc.Rules {
		pattern, err := parsePath(r.Pattern, true)
		if err != nil {
			return ValidationResult{}, err
		}
		for _, segs := range expand(fields.root, pattern) {
			path := formatPath(segs)
			v, err := lookup(fields.root, segs)
			if err != nil {
				add(path, "has the wrong shape")
				continue
			}
			if reason := checkField(r, v); reason != "" {
				add(path, reason)
			}
		}
	}

	if err := checkMoney(sc, fields, res.Errors, add); err != nil {
		return ValidationResult{}, err
	}

	if sc.RequireMainImage && images != nil {
		if _, ok := images.Main(); !ok {
			if images.Len() > 0 {
				add("imageUrl", "main image must be selected")
			} else {
				add("imageUrl", "main image is required")
			}
		}
	}

	sort.SliceStable(res.Errors, func(i, j int) bool { return res.Errors[i].Path < res.Errors[j].Path })
	return res, nil
}

// checkMoney reports money fields that cannot be expressed in minor units
// of the draft's currency. Paths that already failed a field rule are skipped.
func checkMoney(sc Schema, fields *FieldStore, seen []domain.FieldError, add func(path, reason string)) error {
	failed := make(map[string]bool, len(seen))
	for _, fe := range seen {
		failed[fe.Path] = true
	}
	currency := strings.ToUpper(lookupStr(fields.root, sc.CurrencyPath))
	for _, pat := range sc.MoneyFields {
		pattern, err := parsePath(pat, true)
		if err != nil {
			return err
		}
		for _, segs := range expand(fields.root, pattern) {
			path := formatPath(segs)
			v, err := lookup(fields.root, segs)
			if err != nil || isBlank(v) || failed[path] {
				continue
			}
			if _, reason := minorAmount(v, currency); reason != "" {
				add(path, reason)
			}
		}
	}
	return nil
}

func checkField(r FieldRule, v any) string {
	required := strings.Contains(r.Tag, "required")
	if isBlank(v) {
		if required {
			return orMessage(r, "is required")
		}
		return ""
	}
	switch r.Kind {
	case KindNumber:
		f, ok := toFloat(v)
		if !ok {
			return "must be a number"
		}
		v = f
	case KindDate:
		if _, ok := parseDate(v); !ok {
			return "must be a date (YYYY-MM-DD)"
		}
		return ""
	}
	tag := withoutRequired(r.Tag)
	if tag == "" {
		return ""
	}
	if err := validate.Var(v, tag); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return orMessage(r, reasonFor(ve[0]))
		}
		return orMessage(r, "is invalid")
	}
	return ""
}

func applyDates(d DateRule, fields *FieldStore, add func(path, reason string)) error {
	sv, err := fields.Get(d.Start)
	if err != nil {
		return err
	}
	ev, err := fields.Get(d.End)
	if err != nil {
		return err
	}
	start, okS := parseDate(sv)
	end, okE := parseDate(ev)
	if !okS || !okE {
		return nil
	}
	if end.Before(start) {
		add(d.End, "end date must not be before start date")
		return nil
	}
	days := math.Ceil(end.Sub(start).Hours()/24) + 1
	return fields.Set(d.Duration, days)
}

func reasonFor(fe validator.FieldError) string {
	p := fe.Param()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("must be at least %s characters", p)
		}
		return fmt.Sprintf("must be at least %s", p)
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("must be at most %s characters", p)
		}
		return fmt.Sprintf("must be at most %s", p)
	case "len":
		return fmt.Sprintf("must be exactly %s characters", p)
	case "gt":
		return fmt.Sprintf("must be greater than %s", p)
	case "gte":
		return fmt.Sprintf("must be %s or more", p)
	case "lt":
		return fmt.Sprintf("must be less than %s", p)
	case "lte":
		return fmt.Sprintf("must be %s or less", p)
	case "uppercase":
		return "must be uppercase"
	case "oneof":
		return "must be one of " + p
	}
	return "failed " + fe.Tag()
}

// withoutRequired drops the presence check, already handled by isBlank, so a
// zero number reports its range rule instead of "is required".
func withoutRequired(tag string) string {
	var keep []string
	for _, t := range strings.Split(tag, ",") {
		if t != "required" && t != "" {
			keep = append(keep, t)
		}
	}
	return strings.Join(keep, ",")
}

func orMessage(r FieldRule, def string) string {
	if r.Message != "" {
		return r.Message
	}
	return def
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

// toFloat accepts JSON numbers and numeric strings as typed in forms,
// with the same comma handling as payload building.
func toFloat(v any) (float64, bool) {
	if f, ok := v.(float64); ok {
		return f, true
	}
	d, ok := toDecimal(v)
	if !ok {
		return 0, false
	}
	return d.InexactFloat64(), true
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04"}

func parseDate(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
