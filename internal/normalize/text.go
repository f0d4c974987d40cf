package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/model"
)

var multiSpaceRe = regexp.MustCompile(`\s+`)

// categoryAliases maps category spellings seen in client documents to codes.
var categoryAliases = map[string]string{
	"FF":             model.CategoryFurniture,
	"FURNITURE":      model.CategoryFurniture,
	"SEATING":        model.CategoryFurniture,
	"FF&E":           model.CategoryFurniture,
	"AC":             model.CategoryAccessories,
	"ACC":            model.CategoryAccessories,
	"ACCESSORY":      model.CategoryAccessories,
	"ACCESSORIES":    model.CategoryAccessories,
	"DECORATIVE":     model.CategoryAccessories,
	"WALL DECOR":     model.CategoryAccessories,
	"ART":            model.CategoryAccessories,
	"ARTWORK":        model.CategoryAccessories,
	"LT":             model.CategoryLighting,
	"LIGHTING":       model.CategoryLighting,
	"LIGHT":          model.CategoryLighting,
	"CG":             model.CategoryCasegoods,
	"CASEGOODS":      model.CategoryCasegoods,
	"CASE GOODS":     model.CategoryCasegoods,
	"DW":             model.CategoryDrapery,
	"DRAPERY":        model.CategoryDrapery,
	"WALLCOVERING":   model.CategoryDrapery,
	"WALL COVERING":  model.CategoryDrapery,
	"FLOOR COVERING": model.CategoryDrapery,
	"WINDOW":         model.CategoryDrapery,
	"MISC":           model.CategoryMisc,
}

// CollapseSpace trims and collapses internal whitespace.
func CollapseSpace(s string) string {
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
}

// NormalizeCategory maps a raw category to its code. Unknown values become
// model.CategoryMisc.
func NormalizeCategory(raw string) string {
	key := strings.ToUpper(CollapseSpace(raw))
	if key == "" {
		return model.CategoryMisc
	}
	if code, ok := categoryAliases[key]; ok {
		return code
	}
	return model.CategoryMisc
}

// CategoryFromCode guesses a category from an item code prefix such as
// "LB-FF-100" or "AC-12".
func CategoryFromCode(code string) (string, bool) {
	for _, part := range strings.FieldsFunc(strings.ToUpper(code), func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '.'
	}) {
		switch part {
		case model.CategoryFurniture, model.CategoryAccessories, model.CategoryLighting,
			model.CategoryCasegoods, model.CategoryDrapery:
			return part, true
		}
	}
	return "", false
}

// NormalizeFinishText trims and collapses whitespace. Case is meaningful to
// the client and is kept.
func NormalizeFinishText(raw string) string {
	return CollapseSpace(raw)
}

// NormalizeFinishCategory upper-cases a finish category code ("txt" -> "TXT").
func NormalizeFinishCategory(raw string) string {
	return strings.ToUpper(CollapseSpace(raw))
}

// NormalizeVendorID trims a vendor SKU, removes inner spaces around dashes
// and upper-cases it.
func NormalizeVendorID(raw string) string {
	s := strings.ToUpper(CollapseSpace(raw))
	s = strings.ReplaceAll(s, " - ", "-")
	return s
}

// NormalizeCode canonicalizes an item code. Blank codes become model.CodeAbsent.
func NormalizeCode(raw string) string {
	s := strings.ToUpper(CollapseSpace(raw))
	s = strings.TrimPrefix(s, "#")
	if s == "" || s == "N/A" || s == "NA" || s == "-" || s == "TBD" {
		return model.CodeAbsent
	}
	return s
}

var qtyRe = regexp.MustCompile(`^\(?\s*(\d[\d,]*(?:\.\d+)?)\s*\)?\s*([A-Za-z./]*)\s*$`)

// ParseQuantity reads a positive integer quantity with an optional trailing
// unit ("4", "4 EA", "(12) PR", "1,200"). Negative and fractional
// quantities fail with model.ErrMalformedField, zero with
// model.ErrZeroQuantity.
func ParseQuantity(raw string) (int, string, error) {
	s := CollapseSpace(raw)
	m := qtyRe.FindStringSubmatch(s)
	if m == nil {
		return 0, "", eris.Wrapf(model.ErrMalformedField, "normalize: quantity %q", raw)
	}
	num := strings.ReplaceAll(m[1], ",", "")
	if i := strings.IndexByte(num, '.'); i >= 0 {
		if strings.Trim(num[i+1:], "0") != "" {
			return 0, "", eris.Wrapf(model.ErrMalformedField, "normalize: fractional quantity %q", raw)
		}
		num = num[:i]
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, "", eris.Wrapf(model.ErrMalformedField, "normalize: quantity %q", raw)
	}
	if n == 0 {
		return 0, "", eris.Wrapf(model.ErrZeroQuantity, "normalize: quantity %q", raw)
	}
	return n, NormalizeUnit(m[2]), nil
}

// NormalizeUnit upper-cases a unit of measure, defaulting to model.DefaultUnit.
func NormalizeUnit(raw string) string {
	s := strings.ToUpper(strings.Trim(CollapseSpace(raw), "."))
	if s == "" {
		return model.DefaultUnit
	}
	return s
}

var listSplitRe = regexp.MustCompile(`\s*(?:\r?\n|;|•|\|)\s*`)

// SplitList splits a multi-value cell into entries, dropping blanks and
// leading bullet/dash markers. Order is kept.
func SplitList(raw string) []string {
	var out []string
	for _, p := range listSplitRe.Split(raw, -1) {
		p = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(p), "-*·"))
		if p != "" {
			out = append(out, CollapseSpace(p))
		}
	}
	return out
}

// ParseBool reads yes/no style flags ("Y", "yes", "x", "true", "1").
func ParseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "y", "yes", "x", "true", "1", "✓":
		return true
	default:
		return false
	}
}
