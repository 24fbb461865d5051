// Package insight turns filter-panel field values into Insight values.
package insight

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rcliao/insight-sync/internal/model"
)

// Known field keys.
const (
	FieldLocation    = "location"
	FieldPrice       = "price"
	FieldBedrooms    = "bedrooms"
	FieldBathrooms   = "bathrooms"
	FieldHomeType    = "home-type"
	FieldLivingSpace = "living-space"
	FieldParking     = "parking"
)

// DefaultCurrency is used for price ranges that do not name one.
const DefaultCurrency = "CHF"

// DefaultCategories maps each known field to its profile step.
var DefaultCategories = map[string]string{
	FieldLocation:    model.CategoryLocation,
	FieldPrice:       model.CategoryBudget,
	FieldBedrooms:    model.CategoryRequirements,
	FieldBathrooms:   model.CategoryRequirements,
	FieldHomeType:    model.CategoryRequirements,
	FieldLivingSpace: model.CategoryRequirements,
	FieldParking:     model.CategoryRequirements,
}

// Renderer renders field values using fixed unit conventions.
type Renderer struct {
	Currency string
}

var defaultRenderer = Renderer{Currency: DefaultCurrency}

// MakeInsight builds an uncommitted USER insight with the default renderer.
// It returns false for an empty or invalid value, or an unknown priority.
func MakeInsight(fieldKey, value string, priority model.Priority, category string) (model.Insight, bool) {
	return defaultRenderer.MakeInsight(fieldKey, value, priority, category)
}

// MakeInsight builds an uncommitted USER insight for fieldKey.
func (r Renderer) MakeInsight(fieldKey, value string, priority model.Priority, category string) (model.Insight, bool) {
	fieldKey = strings.TrimSpace(fieldKey)
	if fieldKey == "" || !priority.Valid() {
		return model.Insight{}, false
	}
	text, ok := r.Text(fieldKey, value)
	if !ok {
		return model.Insight{}, false
	}
	if category == "" {
		category = DefaultCategories[fieldKey]
	}
	return model.Insight{
		FieldKey: fieldKey,
		Text:     text,
		Category: category,
		Priority: priority,
		Origin:   model.OriginUser,
	}, true
}

// Text renders a field value with the default renderer.
func Text(fieldKey, value string) (string, bool) {
	return defaultRenderer.Text(fieldKey, value)
}

// Text renders the human-readable fact for a field value.
func (r Renderer) Text(fieldKey, value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}

	switch fieldKey {
	case FieldLocation:
		return "Location: " + value, true
	case FieldPrice:
		return r.price(value)
	case FieldBedrooms:
		if strings.EqualFold(value, "studio") || value == "0" {
			return "Studio", true
		}
		return count(value, "bedroom", false)
	case FieldBathrooms:
		return count(value, "bathroom", true)
	case FieldHomeType:
		types := splitList(value)
		if len(types) == 0 {
			return "", false
		}
		return "Home type: " + strings.Join(types, ", "), true
	case FieldLivingSpace:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return "", false
		}
		return fmt.Sprintf("At least %d m² living space", n), true
	case FieldParking:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", false
		}
		if b {
			return "Parking required", true
		}
		return "No parking needed", true
	}
	return titleKey(fieldKey) + ": " + value, true
}

// count renders "N <unit>" with the plural for anything but exactly one.
func count(value, unit string, allowHalf bool) (string, bool) {
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || n <= 0 {
		return "", false
	}
	if n != float64(int(n)) && !(allowHalf && n*2 == float64(int(n*2))) {
		return "", false
	}
	num := strconv.FormatFloat(n, 'f', -1, 64)
	if n == 1 {
		return num + " " + unit, true
	}
	return num + " " + unit + "s", true
}

// price accepts "[CUR ]min-max" where either bound may be omitted. A single
// amount, or a range whose bounds are equal, is an exact budget.
func (r Renderer) price(value string) (string, bool) {
	cur := r.Currency
	if cur == "" {
		cur = DefaultCurrency
	}
	if i := strings.IndexFunc(value, func(c rune) bool { return unicode.IsDigit(c) || c == '-' }); i > 0 {
		cur = strings.TrimSpace(value[:i])
		value = value[i:]
	}

	lo, hi, found := strings.Cut(value, "-")
	if !found {
		hi = lo
	}
	min, minOK := amount(lo)
	max, maxOK := amount(hi)
	if (lo != "" && !minOK) || (hi != "" && !maxOK) || (!minOK && !maxOK) {
		return "", false
	}

	switch {
	case minOK && maxOK:
		if min > max {
			return "", false
		}
		if min == max {
			return fmt.Sprintf("Budget: %s %d", cur, min), true
		}
		return fmt.Sprintf("Budget: %s %d - %s %d", cur, min, cur, max), true
	case minOK:
		return fmt.Sprintf("Budget: from %s %d", cur, min), true
	default:
		return fmt.Sprintf("Budget: up to %s %d", cur, max), true
	}
}

func amount(s string) (int, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "'", ""))
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func titleKey(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '-' || r == '_' })
	if len(words) > 0 {
		r, size := utf8.DecodeRuneInString(words[0])
		words[0] = string(unicode.ToUpper(r)) + words[0][size:]
	}
	return strings.Join(words, " ")
}
