package extract

import (
	"fmt"
	"strings"

	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/normalize"
)

// blockReader groups "LABEL: value" text into item drafts. A draft ends
// when a non-list field repeats; unlabeled lines continue the previous
// field. Used for Word paragraphs and PDF page text.
type blockReader struct {
	aliases *AliasTable
	name    string
	emit    func(Event) bool

	cur     *model.Draft
	last    string
	blocks  int
	image   bool
	stopped bool
}

func newBlockReader(aliases *AliasTable, name string, emit func(Event) bool) *blockReader {
	return &blockReader{aliases: aliases, name: name, emit: emit}
}

// line consumes one line of text. It returns false once the consumer has
// stopped reading.
func (b *blockReader) line(s string) bool {
	if b.stopped {
		return false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		b.last = ""
		return true
	}

	idx := b.aliases.LabelPattern().FindAllStringSubmatchIndex(s, -1)
	if len(idx) == 0 {
		b.continueField(s)
		return !b.stopped
	}

	if lead := trimValue(s[:idx[0][2]]); lead != "" {
		b.continueField(lead)
	}
	for k, m := range idx {
		label := s[m[2]:m[3]]
		end := len(s)
		if k+1 < len(idx) {
			end = idx[k+1][2]
		}
		value := trimValue(s[m[1]:end])
		match, _ := b.aliases.Lookup(label)
		if unit := labelUnit(s[m[3]:m[1]]); unit != "" {
			match.Unit = unit
		}
		b.assign(match, value)
		if b.stopped {
			return false
		}
	}
	return true
}

// markImage flags the current (or next) draft as carrying an image.
func (b *blockReader) markImage() {
	if b.cur != nil {
		b.cur.Set(model.FieldImage, "true")
		return
	}
	b.image = true
}

// close flushes the last draft.
func (b *blockReader) close() bool {
	b.flush()
	return !b.stopped
}

func (b *blockReader) assign(m Match, value string) {
	switch {
	case headerFields[m.Field]:
		b.last = ""
		if value != "" {
			b.send(Event{Header: map[string]string{m.Field: value}})
		}
		return
	case listFields[m.Field]:
		b.ensure()
		b.cur.Append(m.Field, value)
	default:
		if b.cur != nil && b.cur.Has(m.Field) {
			b.flush()
		}
		b.ensure()
		if axisFields[m.Field] && m.Unit != "" && value != "" {
			value = withUnit(value, m)
		}
		b.cur.Set(m.Field, value)
	}
	b.last = m.Field
}

func (b *blockReader) continueField(text string) {
	if b.cur == nil || b.last == "" {
		return
	}
	if listFields[b.last] {
		b.cur.Append(b.last, text)
		return
	}
	if prev := b.cur.Fields[b.last]; prev != "" {
		b.cur.Fields[b.last] = prev + " " + text
		return
	}
	b.cur.Set(b.last, text)
}

func (b *blockReader) ensure() {
	if b.cur != nil {
		return
	}
	b.blocks++
	b.cur = model.NewDraft(fmt.Sprintf("%s block %d", b.name, b.blocks))
	if b.image {
		b.cur.Set(model.FieldImage, "true")
		b.image = false
	}
}

func (b *blockReader) flush() {
	d := b.cur
	b.cur = nil
	b.last = ""
	if d == nil || d.Empty() {
		return
	}
	if d.Has(model.FieldCode) || d.Has(model.FieldVendorItemID) ||
		d.Has(model.FieldName) || d.Has(model.FieldDescription) {
		b.send(Event{Draft: d})
		return
	}
	b.send(Event{Skipped: fmt.Sprintf("%s: no item identifier", d.Source)})
}

func (b *blockReader) send(ev Event) {
	if b.stopped {
		return
	}
	if !b.emit(ev) {
		b.stopped = true
	}
}

func trimValue(s string) string {
	return strings.Trim(s, " \t|,;")
}

// labelUnit reads a unit hint such as "(mm)" between a label and its colon.
func labelUnit(s string) normalize.Unit {
	open := strings.IndexByte(s, '(')
	end := strings.IndexByte(s, ')')
	if open < 0 || end < open {
		return ""
	}
	return unitHint(s[open+1 : end])
}
