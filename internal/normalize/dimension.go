// Package normalize canonicalizes raw extracted strings into typed item fields.
// Every function is pure; failures are returned as errors wrapping the
// model error kinds.
package normalize

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/quote-cli/internal/model"
)

// Unit is a length unit.
type Unit string

const (
	Inch       Unit = "in"
	Foot       Unit = "ft"
	Millimeter Unit = "mm"
	Centimeter Unit = "cm"
)

var (
	mmPerInch = decimal.RequireFromString("25.4")
	cmPerInch = decimal.RequireFromString("2.54")
	inPerFoot = decimal.NewFromInt(12)
)

// Measure is a normalized length.
type Measure struct {
	Value decimal.Decimal
	Unit  Unit
}

// Inches converts the measure to inches.
func (m Measure) Inches() decimal.Decimal {
	switch m.Unit {
	case Millimeter:
		return m.Value.Div(mmPerInch)
	case Centimeter:
		return m.Value.Div(cmPerInch)
	case Foot:
		return m.Value.Mul(inPerFoot)
	default:
		return m.Value
	}
}

var (
	// feet-and-inches: 1'-6", 2' 3 1/2"
	feetInchRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(?:'|′|ft\.?|feet)\s*-?\s*(.*)$`)
	// whole plus fraction: 20 1/2, 20-1/2
	mixedRe = regexp.MustCompile(`^(\d+)[\s-]+(\d+)\s*/\s*(\d+)`)
	fracRe  = regexp.MustCompile(`^(\d+)\s*/\s*(\d+)`)
	numRe   = regexp.MustCompile(`^\d+(?:\.\d+)?|^\.\d+`)
	unitRe  = regexp.MustCompile(`(?i)(mm|millimet(?:er|re)s?|cm|centimet(?:er|re)s?|in\.?|inch(?:es)?|"|″|ft\.?|feet|foot|'|′)\s*$`)
	// axis labels and qualifiers ahead of a single value
	leadDecorRe = regexp.MustCompile(`(?i)^\s*(?:(?:height|width|depth|length|diameter|dia|ht|h|w|d|l)\s*[:=.]?|approx(?:imately|\.)?|overall|nominal|max(?:imum|\.)?|min(?:imum|\.)?)\s*`)
	// a trailing axis letter must follow a non-letter, so "20 inch" keeps its unit
	trailAxisRe = regexp.MustCompile(`(?i)([^a-z])\s*(?:dia|ht|h|w|d|l)\s*$`)
)

// NormalizeDimension parses one axis value such as `20`, `20.5"`, `20 1/2 in`,
// `1'-6"` or `508mm`. A unit written in raw overrides sourceUnit. It fails
// with model.ErrMalformedDimension when no number remains or the value is
// negative.
func NormalizeDimension(raw string, sourceUnit Unit) (Measure, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Measure{}, eris.Wrap(model.ErrMalformedDimension, "normalize: empty dimension")
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "−") {
		return Measure{}, eris.Wrapf(model.ErrMalformedDimension, "normalize: negative dimension %q", raw)
	}
	if sourceUnit == "" {
		sourceUnit = Inch
	}

	s = strings.NewReplacer("''", `"`, "″", `"`, "”", `"`).Replace(s)
	s = leadDecorRe.ReplaceAllString(s, "")
	s = trailAxisRe.ReplaceAllString(s, "${1}")
	s = strings.TrimSpace(strings.TrimPrefix(s, "~"))
	if strings.HasPrefix(s, "-") {
		return Measure{}, eris.Wrapf(model.ErrMalformedDimension, "normalize: negative dimension %q", raw)
	}

	if m := feetInchRe.FindStringSubmatch(s); m != nil {
		feet, err := decimal.NewFromString(m[1])
		if err != nil {
			return Measure{}, eris.Wrapf(model.ErrMalformedDimension, "normalize: dimension %q", raw)
		}
		total := feet.Mul(inPerFoot)
		if rest := strings.TrimSpace(m[2]); rest != "" {
			inches, err := parseNumber(stripUnit(rest))
			if err != nil {
				return Measure{}, eris.Wrapf(model.ErrMalformedDimension, "normalize: dimension %q", raw)
			}
			total = total.Add(inches)
		}
		return Measure{Value: total, Unit: Inch}, nil
	}

	unit := sourceUnit
	if m := unitRe.FindStringSubmatch(s); m != nil {
		unit = unitFromSuffix(m[1])
		s = strings.TrimSpace(s[:len(s)-len(m[0])])
	}

	v, err := parseNumber(s)
	if err != nil {
		return Measure{}, eris.Wrapf(model.ErrMalformedDimension, "normalize: dimension %q", raw)
	}
	return Measure{Value: v, Unit: unit}, nil
}

// ToMillimeters converts inches to whole millimeters, rounding half up.
func ToMillimeters(inches decimal.Decimal) int64 {
	return inches.Mul(mmPerInch).Round(0).IntPart()
}

// FormatInches renders an inch value as a trimmed decimal string ("20", "20.5").
func FormatInches(v decimal.Decimal) string {
	return v.Round(4).String()
}

func stripUnit(s string) string {
	if m := unitRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(s[:len(s)-len(m[0])])
	}
	return s
}

func unitFromSuffix(suffix string) Unit {
	switch strings.ToLower(strings.TrimSuffix(suffix, ".")) {
	case "mm", "millimeter", "millimeters", "millimetre", "millimetres":
		return Millimeter
	case "cm", "centimeter", "centimeters", "centimetre", "centimetres":
		return Centimeter
	case "ft", "feet", "foot", "'", "′":
		return Foot
	default:
		return Inch
	}
}

// parseNumber reads a leading decimal, mixed number or fraction and ignores
// trailing decoration.
func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if m := mixedRe.FindStringSubmatch(s); m != nil {
		whole := decimal.RequireFromString(m[1])
		frac, err := fraction(m[2], m[3])
		if err != nil {
			return decimal.Zero, err
		}
		return whole.Add(frac), nil
	}
	if m := fracRe.FindStringSubmatch(s); m != nil {
		return fraction(m[1], m[2])
	}
	if m := numRe.FindString(s); m != "" {
		return decimal.NewFromString(m)
	}
	return decimal.Zero, eris.New("no number")
}

func fraction(num, den string) (decimal.Decimal, error) {
	d := decimal.RequireFromString(den)
	if d.IsZero() {
		return decimal.Zero, eris.New("zero denominator")
	}
	return decimal.RequireFromString(num).DivRound(d, 4), nil
}
