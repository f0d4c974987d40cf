package extract

import (
	"fmt"
	"strings"

	"github.com/sells-group/quote-cli/internal/model"
)

var (
	listFields = map[string]bool{
		model.FieldAccessories:         true,
		model.FieldSpecialInstructions: true,
	}
	headerFields = func() map[string]bool {
		m := make(map[string]bool, len(model.HeaderFields))
		for _, f := range model.HeaderFields {
			m[f] = true
		}
		return m
	}()
	axisFields = map[string]bool{
		model.FieldHeight: true,
		model.FieldWidth:  true,
		model.FieldDepth:  true,
	}
)

// minHeaderColumns is how many mapped columns a row needs to be taken as
// the header row. The first non-empty row is also taken when it maps a code
// or vendor item id column.
const minHeaderColumns = 2

// table turns the rows of one sheet (or CSV file, or Word table) into
// events. The first row with enough recognised columns is the header;
// "Label: value" rows above it are document-level header fields.
type table struct {
	aliases *AliasTable
	name    string

	headers []string
	cols    []Match
	// keyed reports whether a code-bearing column is present; when it is
	// not, name/description identify item rows.
	keyed bool
	// rows counts header candidates seen so far.
	rows int
	// mapped is how many header columns matched a field.
	mapped int
}

func newTable(aliases *AliasTable, name string) *table {
	return &table{aliases: aliases, name: name}
}

// row classifies one row. ok is false for rows that produce no event
// (blank rows, titles above the header, the header itself).
func (t *table) row(n int, cells []string) (Event, bool) {
	cells = trimCells(cells)
	if isBlank(cells) {
		return Event{}, false
	}

	if t.cols == nil {
		if h, ok := t.preamble(cells); ok {
			return Event{Header: h}, true
		}
		t.tryHeader(cells)
		return Event{}, false
	}

	source := fmt.Sprintf("%s!R%d", t.name, n)
	d := model.NewDraft(source)
	for i, cell := range cells {
		if cell == "" {
			continue
		}
		if i >= len(t.cols) || t.cols[i].Field == "" {
			if i < len(t.headers) && t.headers[i] != "" {
				d.Extra[t.headers[i]] = cell
			}
			continue
		}
		m := t.cols[i]
		switch {
		case listFields[m.Field]:
			d.Append(m.Field, cell)
		case axisFields[m.Field] && m.Unit != "":
			d.Set(m.Field, withUnit(cell, m))
		default:
			d.Set(m.Field, cell)
		}
	}

	if !t.identified(d) {
		return Event{Skipped: fmt.Sprintf("%s: no item identifier", source)}, true
	}
	return Event{Draft: d}, true
}

func (t *table) identified(d *model.Draft) bool {
	if t.keyed {
		return d.Has(model.FieldCode) || d.Has(model.FieldVendorItemID)
	}
	return d.Has(model.FieldName) || d.Has(model.FieldDescription)
}

func (t *table) tryHeader(cells []string) {
	cols := make([]Match, len(cells))
	mapped := 0
	keyed := false
	for i, c := range cells {
		m, ok := t.aliases.Lookup(c)
		if !ok || headerFields[m.Field] {
			continue
		}
		cols[i] = m
		mapped++
		if m.Field == model.FieldCode || m.Field == model.FieldVendorItemID {
			keyed = true
		}
	}
	t.rows++
	if mapped < minHeaderColumns && !(keyed && t.rows == 1) {
		return
	}
	t.headers = cells
	t.cols = cols
	t.keyed = keyed
	t.mapped = mapped
}

// preamble recognises rows made only of document-level "Label: value"
// pairs, either within one cell or spread over adjacent cells.
func (t *table) preamble(cells []string) (map[string]string, bool) {
	var vals []string
	for _, c := range cells {
		if c != "" {
			vals = append(vals, c)
		}
	}

	out := make(map[string]string)
	for i := 0; i < len(vals); i++ {
		v := vals[i]
		if label, value, ok := strings.Cut(v, ":"); ok && strings.TrimSpace(value) != "" {
			m, found := t.aliases.Lookup(label)
			if !found || !headerFields[m.Field] {
				return nil, false
			}
			out[m.Field] = strings.TrimSpace(value)
			continue
		}
		m, found := t.aliases.Lookup(v)
		if !found || !headerFields[m.Field] || i+1 >= len(vals) {
			return nil, false
		}
		if _, isLabel := t.aliases.Lookup(vals[i+1]); isLabel {
			return nil, false
		}
		out[m.Field] = vals[i+1]
		i++
	}
	return out, len(out) > 0
}

// withUnit appends a column's unit hint to a bare number.
func withUnit(value string, m Match) string {
	if strings.IndexFunc(value, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '"' || r == '\''
	}) >= 0 {
		return value
	}
	return value + " " + string(m.Unit)
}

func trimCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
