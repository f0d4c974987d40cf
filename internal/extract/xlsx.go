package extract

import (
	"bytes"
	"context"

	"github.com/extrame/xls"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/quote-cli/internal/model"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Spreadsheet extracts one draft per item row of every worksheet. Each
// sheet has its own header row.
type Spreadsheet struct {
	aliases *AliasTable
}

// Extract implements Extractor.
func (s *Spreadsheet) Extract(ctx context.Context, up model.Upload) (<-chan Event, <-chan error) {
	return stream(ctx, func(emit func(Event) bool) error {
		if up.Kind == model.KindXLS && !bytes.HasPrefix(up.Content, zipMagic) {
			return s.legacy(ctx, up, emit)
		}
		return s.workbook(up, emit)
	})
}

func (s *Spreadsheet) workbook(up model.Upload, emit func(Event) bool) error {
	f, err := xlsx.OpenBinary(up.Content)
	if err != nil {
		return eris.Wrapf(err, "xlsx: open %s", up.Name)
	}

	for _, sheet := range f.Sheets {
		t := newTable(s.aliases, sheet.Name)
		for i, row := range sheet.Rows {
			if row == nil {
				continue
			}
			ev, ok := t.row(i+1, rowToStrings(row))
			if !ok {
				continue
			}
			if !emit(ev) {
				return nil
			}
		}
	}
	return nil
}

// legacy handles .xls uploads that are not zip workbooks. Tab or comma
// separated exports saved with an .xls name are common; anything in a
// compound file is read as a BIFF workbook.
func (s *Spreadsheet) legacy(ctx context.Context, up model.Upload, emit func(Event) bool) error {
	if !bytes.HasPrefix(up.Content, oleMagic) {
		return readDelimited(ctx, s.aliases, up, emit)
	}
	return s.biff(ctx, up, emit)
}

func (s *Spreadsheet) biff(ctx context.Context, up model.Upload, emit func(Event) bool) (err error) {
	// The BIFF decoder indexes records straight off the stream and panics
	// on truncated input.
	defer func() {
		if r := recover(); r != nil {
			err = eris.Wrapf(model.ErrUnsupportedFormat, "xls: %s is damaged: %v", up.Name, r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(up.Content), "utf-8")
	if err != nil {
		return eris.Wrapf(model.ErrUnsupportedFormat, "xls: %s is not a readable compound file: %v", up.Name, err)
	}
	if wb == nil {
		return eris.Wrapf(model.ErrUnsupportedFormat, "xls: %s has no workbook stream", up.Name)
	}

	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		t := newTable(s.aliases, sheet.Name)
		for r := 0; r <= int(sheet.MaxRow); r++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			cells, ok := biffRow(sheet, r)
			if !ok {
				continue
			}
			ev, ok := t.row(r+1, cells)
			if !ok {
				continue
			}
			if !emit(ev) {
				return nil
			}
		}
	}
	return nil
}

// maxBIFFColumns is the BIFF8 column limit (IV).
const maxBIFFColumns = 256

// biffRow reads row r. ok is false when the sheet has no record for it.
func biffRow(sheet *xls.WorkSheet, r int) (cells []string, ok bool) {
	// WorkSheet.Row dereferences a nil row for indexes with no record.
	defer func() {
		if recover() != nil {
			cells, ok = nil, false
		}
	}()

	row := sheet.Row(r)
	last := row.LastCol()
	if last <= 0 || last > maxBIFFColumns {
		// Rows built from cell records alone carry no column bounds.
		last = maxBIFFColumns
	}
	cells = make([]string, last)
	for c := 0; c < last; c++ {
		cells[c] = row.Col(c)
	}
	return cells, true
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = cell.String()
	}
	return cells
}
