// Package fingerprint decides whether two items denote the same physical
// item: an exact key for certain duplicates and a weighted similarity score
// for probable ones.
package fingerprint

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/quote-cli/internal/config"
	"github.com/sells-group/quote-cli/internal/model"
)

// Key is the exact-duplicate key of an item.
type Key string

const keySep = "|"

// Engine computes keys and similarity scores under one match configuration.
type Engine struct {
	threshold float64
	tolerance decimal.Decimal
	wText     float64
	wCategory float64
	wDims     float64
}

// New creates an Engine. Weights are normalised to sum to one.
func New(cfg config.MatchConfig) *Engine {
	total := cfg.TextWeight + cfg.CategoryWeight + cfg.DimensionWeight
	if total <= 0 {
		total = 1
	}
	return &Engine{
		threshold: cfg.Threshold,
		tolerance: decimal.NewFromFloat(cfg.DimensionToleranceIn),
		wText:     cfg.TextWeight / total,
		wCategory: cfg.CategoryWeight / total,
		wDims:     cfg.DimensionWeight / total,
	}
}

// Threshold is the probable-duplicate cut-off.
func (e *Engine) Threshold() float64 { return e.threshold }

// Key builds the normalized tuple (code, category, vendor, manufacturer,
// vendor item id, dimensions rounded to whole inches, finish category).
func (e *Engine) Key(it model.Item) Key {
	return Key(strings.Join(keyParts(it), keySep))
}

// Compatible reports whether a and b share an identifier and agree on every
// other key field populated on both sides. A field left blank on one side
// does not count against the pair, so a sparse and a complete record of the
// same item still group.
func (e *Engine) Compatible(a, b model.Item) bool {
	pa, pb := keyParts(a), keyParts(b)
	shared := false
	for i := range pa {
		if pa[i] == "" || pb[i] == "" {
			continue
		}
		if pa[i] != pb[i] {
			return false
		}
		if i == partCode || i == partVendorItemID {
			shared = true
		}
	}
	return shared
}

const (
	partCode         = 0
	partVendorItemID = 4
)

func keyParts(it model.Item) []string {
	return []string{
		foldCode(it.Code),
		fold(it.Category),
		fold(it.Vendor),
		fold(it.Manufacturer),
		fold(it.VendorItemID),
		wholeInches(it.Dimensions.Height),
		wholeInches(it.Dimensions.Width),
		wholeInches(it.Dimensions.Depth),
		fold(it.FinishCategory),
	}
}

func foldCode(code string) string {
	if code == model.CodeAbsent {
		return ""
	}
	return fold(code)
}

// Keyed reports whether an item carries an identifier (a code or a vendor
// item id). Only keyed items take part in exact-key matching; two items
// with no identifier and blank commercial fields would otherwise share a
// key by accident.
func Keyed(it model.Item) bool {
	return (it.Code != "" && it.Code != model.CodeAbsent) || strings.TrimSpace(it.VendorItemID) != ""
}

// Similarity scores a pair in [0,1]: a weighted blend of name+description
// text similarity, category equality and dimensional closeness. Pairs whose
// identifiers are both present and different score 0.
func (e *Engine) Similarity(a, b model.Item) float64 {
	if identifiersConflict(a, b) {
		return 0
	}
	text := textSimilarity(itemText(a), itemText(b))
	category := categorySimilarity(a.Category, b.Category)
	dims := e.dimensionSimilarity(a.Dimensions, b.Dimensions)
	if text == 1 && category == 1 && dims == 1 {
		return 1
	}

	score := e.wText*text + e.wCategory*category + e.wDims*dims
	switch {
	case score > 1:
		return 1
	case score < 0:
		return 0
	}
	return score
}

// Probable reports whether a and b are probable duplicates.
func (e *Engine) Probable(a, b model.Item) bool {
	return e.Similarity(a, b) >= e.threshold
}

func identifiersConflict(a, b model.Item) bool {
	codeA, codeB := fold(a.Code), fold(b.Code)
	absent := fold(model.CodeAbsent)
	if codeA != "" && codeB != "" && codeA != absent && codeB != absent && codeA != codeB {
		return true
	}
	vidA, vidB := fold(a.VendorItemID), fold(b.VendorItemID)
	return vidA != "" && vidB != "" && vidA != vidB
}

func itemText(it model.Item) string {
	return fold(it.Name + " " + it.Description)
}

func categorySimilarity(a, b string) float64 {
	if fold(a) == fold(b) {
		return 1
	}
	return 0
}

// dimensionSimilarity is 0 when an axis populated on both sides differs by
// more than the tolerance and 1 otherwise. An axis populated on one side
// only is not compared.
func (e *Engine) dimensionSimilarity(a, b model.Dimensions) float64 {
	for _, ax := range [][2]string{
		{a.Height, b.Height},
		{a.Width, b.Width},
		{a.Depth, b.Depth},
	} {
		x, okX := parseInches(ax[0])
		y, okY := parseInches(ax[1])
		if !okX || !okY {
			continue
		}
		if x.Sub(y).Abs().GreaterThan(e.tolerance) {
			return 0
		}
	}
	return 1
}

// textSimilarity averages word-set Jaccard and character-bigram Dice so
// that both reordered words and small spelling variations score well.
func textSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return (jaccard(wordSet(a), wordSet(b)) + dice(bigrams(a), bigrams(b))) / 2
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(s)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func bigrams(s string) map[string]int {
	r := []rune(strings.ReplaceAll(s, " ", ""))
	out := make(map[string]int, len(r))
	for i := 0; i+1 < len(r); i++ {
		out[string(r[i:i+2])]++
	}
	return out
}

func dice(a, b map[string]int) float64 {
	na, nb := 0, 0
	for _, n := range a {
		na += n
	}
	for _, n := range b {
		nb += n
	}
	if na+nb == 0 {
		return 0
	}
	shared := 0
	for g, n := range a {
		shared += min(n, b[g])
	}
	return 2 * float64(shared) / float64(na+nb)
}

func parseInches(s string) (decimal.Decimal, bool) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func wholeInches(s string) string {
	d, ok := parseInches(s)
	if !ok {
		return ""
	}
	return d.Round(0).String()
}

// fold case-folds, strips diacritics and reduces punctuation to single
// spaces.
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = cases.Fold().String(out)
	return strings.Join(strings.FieldsFunc(out, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}), " ")
}
