package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/xml"
	"io"
	"strings"

	"github.com/richardlehane/mscfb"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/sells-group/quote-cli/internal/model"
)

// Word extracts drafts from .docx and legacy .doc specification documents.
// Paragraph text is read as labeled blocks; tables are read either as item
// grids (when the first row is a recognisable header) or as label/value
// rows.
type Word struct {
	aliases *AliasTable
}

// Extract implements Extractor.
func (w *Word) Extract(ctx context.Context, up model.Upload) (<-chan Event, <-chan error) {
	return stream(ctx, func(emit func(Event) bool) error {
		if up.Kind == model.KindDOC && bytes.HasPrefix(up.Content, oleMagic) {
			return w.binary(up, emit)
		}
		return w.docx(ctx, up, emit)
	})
}

type wordTable struct {
	rows   [][]string
	images []bool
}

func (w *Word) docx(ctx context.Context, up model.Upload, emit func(Event) bool) error {
	zr, err := zip.NewReader(bytes.NewReader(up.Content), int64(len(up.Content)))
	if err != nil {
		return eris.Wrapf(err, "docx: open %s", up.Name)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return eris.Errorf("docx: word/document.xml not found in %s", up.Name)
	}

	rc, err := docFile.Open()
	if err != nil {
		return eris.Wrap(err, "docx: open document.xml")
	}
	defer rc.Close() //nolint:errcheck

	blocks := newBlockReader(w.aliases, up.Name, emit)
	decoder := xml.NewDecoder(rc)

	var (
		para       strings.Builder
		inText     bool
		inRun      bool
		paraImage  bool
		tableDepth int
		tbl        *wordTable
		row        []string
		rowImage   bool
		cell       strings.Builder
	)

	for {
		if ctx.Err() != nil {
			return nil
		}
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return eris.Wrapf(err, "docx: parse %s", up.Name)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
				if tableDepth == 1 {
					tbl = &wordTable{}
				}
			case "tr":
				if tableDepth == 1 {
					row = nil
					rowImage = false
				}
			case "tc":
				if tableDepth == 1 {
					cell.Reset()
				}
			case "p":
				para.Reset()
				paraImage = false
			case "r":
				inRun = true
			case "t":
				inText = true
			case "tab":
				if inRun {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if inRun {
					para.WriteByte('\n')
				}
			case "drawing", "pict":
				paraImage = true
			}

		case xml.CharData:
			if inText {
				para.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun = false
			case "t":
				inText = false
			case "p":
				text := para.String()
				if tableDepth > 0 {
					if cell.Len() > 0 && strings.TrimSpace(text) != "" {
						cell.WriteByte('\n')
					}
					cell.WriteString(strings.TrimSpace(text))
					rowImage = rowImage || paraImage
					continue
				}
				if paraImage {
					blocks.markImage()
				}
				for _, line := range strings.Split(text, "\n") {
					if !blocks.line(tabRow(w.aliases, line)) {
						return nil
					}
				}
			case "tc":
				if tableDepth == 1 {
					row = append(row, cell.String())
				}
			case "tr":
				if tableDepth == 1 && tbl != nil {
					tbl.rows = append(tbl.rows, row)
					tbl.images = append(tbl.images, rowImage)
				}
			case "tbl":
				tableDepth--
				if tableDepth == 0 && tbl != nil {
					if !w.table(up.Name, tbl, blocks, emit) {
						return nil
					}
					tbl = nil
				}
			}
		}
	}

	blocks.close()
	return nil
}

// table emits a Word table either as an item grid or as label/value rows.
func (w *Word) table(name string, tbl *wordTable, blocks *blockReader, emit func(Event) bool) bool {
	if len(tbl.rows) == 0 {
		return true
	}

	grid := newTable(w.aliases, name+" table")
	grid.tryHeader(trimCells(tbl.rows[0]))
	// Two-cell "Label | value" rows look like a one-column header.
	if grid.cols == nil || grid.mapped < minHeaderColumns {
		for i, row := range tbl.rows {
			if tbl.images[i] {
				blocks.markImage()
			}
			for _, line := range labelRow(w.aliases, row) {
				if !blocks.line(line) {
					return false
				}
			}
		}
		return true
	}

	blocks.flush()
	if blocks.stopped {
		return false
	}
	for i, row := range tbl.rows[1:] {
		ev, ok := grid.row(i+2, row)
		if !ok {
			continue
		}
		if ev.Draft != nil && tbl.images[i+1] {
			ev.Draft.Set(model.FieldImage, "true")
		}
		if !emit(ev) {
			return false
		}
	}
	return true
}

// labelRow renders a table row whose first cell is a known label as
// "label: value" lines; other rows are joined as plain text.
func labelRow(aliases *AliasTable, cells []string) []string {
	cells = trimCells(cells)
	var vals []string
	for _, c := range cells {
		if c != "" {
			vals = append(vals, c)
		}
	}
	if len(vals) == 0 {
		return []string{""}
	}

	if len(vals) >= 2 && !strings.Contains(vals[0], ":") {
		if _, ok := aliases.Lookup(vals[0]); ok {
			value := strings.Join(vals[1:], " ")
			lines := strings.Split(value, "\n")
			lines[0] = vals[0] + ": " + lines[0]
			return lines
		}
	}
	return strings.Split(strings.Join(vals, " "), "\n")
}

// tabRow turns a tab separated "Label<TAB>value" line into "Label: value".
func tabRow(aliases *AliasTable, line string) string {
	if !strings.Contains(line, "\t") {
		return line
	}
	return strings.Join(labelRow(aliases, strings.Split(line, "\t")), " ")
}

// binary reads the text stream of a Word 97-2003 document. Only the main
// document text range is used; formatting is ignored.
func (w *Word) binary(up model.Upload, emit func(Event) bool) error {
	doc, err := mscfb.New(bytes.NewReader(up.Content))
	if err != nil {
		return eris.Wrapf(err, "doc: open %s", up.Name)
	}

	var data []byte
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name != "WordDocument" {
			continue
		}
		data, err = io.ReadAll(entry)
		if err != nil {
			return eris.Wrapf(err, "doc: read WordDocument stream of %s", up.Name)
		}
		break
	}
	if data == nil {
		return eris.Wrapf(model.ErrUnsupportedFormat, "doc: %s has no WordDocument stream", up.Name)
	}

	text, err := wordText(data)
	if err != nil {
		return eris.Wrapf(err, "doc: decode %s", up.Name)
	}

	blocks := newBlockReader(w.aliases, up.Name, emit)
	for _, line := range strings.Split(text, "\n") {
		if !blocks.line(tabRow(w.aliases, line)) {
			return nil
		}
	}
	blocks.close()
	return nil
}

// wordText decodes the fcMin..fcMac text range named by the FIB, falling
// back to the printable runs of the whole stream.
func wordText(data []byte) (string, error) {
	raw := data
	if len(data) >= 0x20 {
		fcMin := binary.LittleEndian.Uint32(data[0x18:])
		fcMac := binary.LittleEndian.Uint32(data[0x1C:])
		if fcMin < fcMac && int(fcMac) <= len(data) {
			raw = data[fcMin:fcMac]
		}
	}

	var decoded []byte
	var err error
	if looksUTF16(raw) {
		decoded, err = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	} else {
		decoded, err = charmap.Windows1252.NewDecoder().Bytes(raw)
	}
	if err != nil {
		return "", eris.Wrap(err, "decode text")
	}
	return cleanWordText(string(decoded)), nil
}

// looksUTF16 reports whether most odd bytes are zero, as in UTF-16LE Latin
// text.
func looksUTF16(b []byte) bool {
	if len(b) < 4 {
		return false
	}
	zeros, total := 0, 0
	for i := 1; i < len(b); i += 2 {
		total++
		if b[i] == 0 {
			zeros++
		}
	}
	return zeros*2 > total
}

func cleanWordText(s string) string {
	var sb strings.Builder
	inField := 0
	for _, r := range s {
		switch {
		case r == 0x13: // field begin
			inField++
		case r == 0x14: // field separator: result follows
			if inField > 0 {
				inField--
			}
		case r == 0x15: // field end
		case inField > 0:
		case r == '\r' || r == 0x0B || r == 0x0C:
			sb.WriteByte('\n')
		case r == 0x07:
			sb.WriteByte('\t')
		case r == '\t' || r == '\n':
			sb.WriteRune(r)
		case r < 0x20 || r == 0xFFFD:
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
