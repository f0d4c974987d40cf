package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/quote-cli/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Delimited extracts drafts from CSV exports. The delimiter (comma,
// semicolon or tab) is detected from the first lines; Windows-1252 input
// is transcoded to UTF-8.
type Delimited struct {
	aliases *AliasTable
}

// Extract implements Extractor.
func (d *Delimited) Extract(ctx context.Context, up model.Upload) (<-chan Event, <-chan error) {
	return stream(ctx, func(emit func(Event) bool) error {
		return readDelimited(ctx, d.aliases, up, emit)
	})
}

func readDelimited(ctx context.Context, aliases *AliasTable, up model.Upload, emit func(Event) bool) error {
	content, err := decodeText(up.Content)
	if err != nil {
		return eris.Wrapf(err, "csv: decode %s", up.Name)
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = detectDelimiter(content)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	t := newTable(aliases, "csv")
	for n := 1; ; n++ {
		if ctx.Err() != nil {
			return nil
		}

		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrapf(err, "csv: read row %d of %s", n, up.Name)
		}

		ev, ok := t.row(n, record)
		if !ok {
			continue
		}
		if !emit(ev) {
			return nil
		}
	}
}

// decodeText strips a UTF-8 BOM and transcodes non-UTF-8 input as
// Windows-1252.
func decodeText(b []byte) (string, error) {
	b = bytes.TrimPrefix(b, utf8BOM)
	if utf8.Valid(b) {
		return string(b), nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return "", eris.Wrap(err, "windows-1252")
	}
	return string(out), nil
}

// detectDelimiter picks the candidate that occurs most often outside quotes
// in the first few lines.
func detectDelimiter(content string) rune {
	lines := strings.SplitN(content, "\n", 6)
	if len(lines) > 5 {
		lines = lines[:5]
	}
	best, bestCount := ',', 0
	for _, cand := range []rune{',', ';', '\t'} {
		count := 0
		for _, line := range lines {
			count += countUnquoted(line, cand)
		}
		if count > bestCount {
			best, bestCount = cand, count
		}
	}
	return best
}

func countUnquoted(line string, r rune) int {
	n := 0
	quoted := false
	for _, c := range line {
		switch {
		case c == '"':
			quoted = !quoted
		case c == r && !quoted:
			n++
		}
	}
	return n
}
