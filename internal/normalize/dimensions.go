package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/model"
)

var (
	// crossRe finds an x used as a separator: after a number, a unit or an
	// axis marker, never inside a word such as "max" or "approx".
	crossRe = regexp.MustCompile(`(?i)([\d.'"″]|\b(?:dia|ht|[hwdl]|inch(?:es)?|in|mm|cm|ft|feet))\s*x\s*`)
	// axisSplitRe splits combined dimension strings such as `20"H × 20"W × 5"D`
	// once crossRe has rewritten separator x's.
	axisSplitRe = regexp.MustCompile(`(?i)\s*(?:×|\*|\bby\b)\s*`)
)

// axisLetterRe finds an explicit axis marker in one part of a combined string.
var axisLetterRe = regexp.MustCompile(`(?i)(?:^|[^a-z])(height|width|depth|length|dia|ht|h|w|d|l)(?:[^a-z]|$)`)

// ParseDimensions splits a combined dimension string into inch axes. Parts
// carrying an axis letter are placed by letter (L and DIA count as width);
// unlabeled parts fill height, width, depth in order. Values are
// converted to inches.
func ParseDimensions(raw string, sourceUnit Unit) (model.Dimensions, error) {
	var dims model.Dimensions
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return dims, eris.Wrap(model.ErrMalformedDimension, "normalize: empty dimensions")
	}

	parts := axisSplitRe.Split(crossRe.ReplaceAllString(raw, "$1 × "), -1)
	if len(parts) > 3 {
		return dims, eris.Wrapf(model.ErrMalformedDimension, "normalize: too many axes in %q", raw)
	}

	// A unit written once at the end applies to every part ("20 x 20 x 5 in").
	if m := unitRe.FindStringSubmatch(parts[len(parts)-1]); m != nil {
		sourceUnit = unitFromSuffix(m[1])
	}

	var unlabeled []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		m, err := NormalizeDimension(p, sourceUnit)
		if err != nil {
			return model.Dimensions{}, err
		}
		value := FormatInches(m.Inches())

		axis := ""
		if lm := axisLetterRe.FindStringSubmatch(p); lm != nil {
			axis = strings.ToLower(lm[1])
		}
		switch axis {
		case "h", "ht", "height":
			dims.Height = value
		case "w", "width", "l", "length", "dia":
			dims.Width = value
		case "d", "depth":
			dims.Depth = value
		default:
			unlabeled = append(unlabeled, value)
		}
	}

	for _, v := range unlabeled {
		switch {
		case dims.Height == "":
			dims.Height = v
		case dims.Width == "":
			dims.Width = v
		case dims.Depth == "":
			dims.Depth = v
		}
	}
	return dims, nil
}

// NormalizeAxis normalizes one inch axis value, returning the canonical
// decimal string.
func NormalizeAxis(raw string, sourceUnit Unit) (string, error) {
	m, err := NormalizeDimension(raw, sourceUnit)
	if err != nil {
		return "", err
	}
	return FormatInches(m.Inches()), nil
}

// DeriveMillimeters computes round(inches × 25.4) per populated axis.
func DeriveMillimeters(inches model.Dimensions) (model.Dimensions, error) {
	var out model.Dimensions
	for _, ax := range []struct {
		in  string
		out *string
	}{
		{inches.Height, &out.Height},
		{inches.Width, &out.Width},
		{inches.Depth, &out.Depth},
	} {
		if ax.in == "" {
			continue
		}
		m, err := NormalizeDimension(ax.in, Inch)
		if err != nil {
			return model.Dimensions{}, err
		}
		*ax.out = strconv.FormatInt(ToMillimeters(m.Inches()), 10)
	}
	return out, nil
}

// FillMillimeters fills any millimeter axis left blank from its inch
// counterpart. Supplied millimeter values are kept.
func FillMillimeters(inches, mm model.Dimensions) (model.Dimensions, error) {
	derived, err := DeriveMillimeters(inches)
	if err != nil {
		return mm, err
	}
	if mm.Height == "" {
		mm.Height = derived.Height
	}
	if mm.Width == "" {
		mm.Width = derived.Width
	}
	if mm.Depth == "" {
		mm.Depth = derived.Depth
	}
	return mm, nil
}
