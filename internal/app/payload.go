package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"travel_desk/internal/domain"
)

/********** image keys (single source of truth) **********/

const (
	keyMainImage = "imageUrl"
	keyGallery   = "galleryUrls"
)

// aliases accepted when decoding entities written by older screens
var imageAliases = map[string][]string{
	keyMainImage: {"imageUrl", "image_url", "mainImage", "coverImage"},
	keyGallery:   {"galleryUrls", "gallery_urls", "gallery", "images"},
}

// stripped from decoded payloads; they are not operator-editable fields
var serverOnlyKeys = []string{"id", "createdAt", "updatedAt"}

/********** submission side **********/

// BuildPayload assembles the catalog payload: field values with money
// converted to minor units of the draft's currency, plus the image set.
// Money problems are reported as a ValidationError.
func BuildPayload(sc Schema, values map[string]any, imgs domain.ImageSet) (domain.Payload, error) {
	out := deepCopy(values).(map[string]any)

	currency := strings.ToUpper(lookupStr(out, sc.CurrencyPath))
	var bad []domain.FieldError
	for _, pat := range sc.MoneyFields {
		pattern, err := parsePath(pat, true)
		if err != nil {
			return nil, err
		}
		for _, segs := range expand(out, pattern) {
			v, err := lookup(out, segs)
			if err != nil || isBlank(v) {
				continue
			}
			path := formatPath(segs)
			m, reason := minorAmount(v, currency)
			if reason != "" {
				bad = append(bad, domain.FieldError{Path: path, Reason: reason})
				continue
			}
			if _, err := assign(out, segs, m.Amount); err != nil {
				return nil, fmt.Errorf("convert %s: %w", path, err)
			}
		}
	}
	if len(bad) > 0 {
		return nil, &domain.ValidationError{Fields: bad}
	}
	if currency != "" {
		out[sc.CurrencyPath] = currency
	}

	out[keyMainImage] = imgs.MainURL
	gallery := imgs.GalleryURLs
	if gallery == nil {
		gallery = []string{}
	}
	out[keyGallery] = gallery
	return domain.Payload(out), nil
}

/********** load side **********/

// DecodePayload turns a catalog payload back into store values (money in
// major units) and the entity's image set.
func DecodePayload(sc Schema, p domain.Payload) (map[string]any, domain.ImageSet, error) {
	raw, err := normalize(map[string]any(p))
	if err != nil {
		return nil, domain.ImageSet{}, err
	}
	values, _ := raw.(map[string]any)
	if values == nil {
		values = map[string]any{}
	}

	imgs := domain.ImageSet{
		MainURL:     deref(firstNonEmptyAlias(values, imageAliases, keyMainImage)),
		GalleryURLs: firstSliceStrings(values, imageAliases[keyGallery]...),
	}
	for _, keys := range imageAliases {
		for _, k := range keys {
			delete(values, k)
		}
	}
	for _, k := range serverOnlyKeys {
		delete(values, k)
	}

	currency := strings.ToUpper(lookupStr(values, sc.CurrencyPath))
	for _, pat := range sc.MoneyFields {
		pattern, err := parsePath(pat, true)
		if err != nil {
			return nil, domain.ImageSet{}, err
		}
		for _, segs := range expand(values, pattern) {
			v, err := lookup(values, segs)
			if err != nil || v == nil {
				continue
			}
			minor := firstInt64Flexible(v)
			if minor == nil {
				continue
			}
			major := domain.NewMoney(*minor, currency).Major().InexactFloat64()
			if _, err := assign(values, segs, major); err != nil {
				return nil, domain.ImageSet{}, err
			}
		}
	}
	return values, imgs, nil
}

/********** tiny helpers **********/

// lookupStr returns the string at a dotted path or "".
func lookupStr(m map[string]any, path string) string {
	segs, err := parsePath(path, false)
	if err != nil {
		return ""
	}
	v, _ := lookup(m, segs)
	s, _ := v.(string)
	return s
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) *string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return &s
		}
	}
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// firstSliceStrings: accept []any with either strings or {url/src}.
func firstSliceStrings(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		raw, ok := m[k].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(raw))
		for _, it := range raw {
			switch t := it.(type) {
			case string:
				if t != "" {
					out = append(out, t)
				}
			case map[string]any:
				if u, ok := t["url"].(string); ok && u != "" {
					out = append(out, u)
					continue
				}
				if u, ok := t["src"].(string); ok && u != "" {
					out = append(out, u)
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// firstInt64Flexible: int64 from float64/int/string.
func firstInt64Flexible(v any) *int64 {
	switch t := v.(type) {
	case float64:
		x := int64(t)
		return &x
	case int:
		x := int64(t)
		return &x
	case int64:
		x := t
		return &x
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &n
		}
	}
	return nil
}

// minorAmount converts a major-unit store value to minor units, or says
// why it cannot.
func minorAmount(v any, currency string) (domain.Money, string) {
	d, ok := toDecimal(v)
	if !ok {
		return domain.Money{}, "must be a number"
	}
	m, err := domain.FromMajor(d, currency)
	if err != nil {
		return domain.Money{}, err.Error()
	}
	return m, ""
}

// toDecimal reads a major-unit amount; "8,50" is accepted as 8.50.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", "."))
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	}
	return decimal.Decimal{}, false
}
