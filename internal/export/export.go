// Package export writes the consolidated item batch as a tabular artifact
// (XLSX or CSV), one row per item with a fixed column set.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/config"
	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/normalize"
)

// Supported formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// Columns is the fixed export column set.
var Columns = []string{
	"ID",
	"Code",
	"Category",
	"Name",
	"Description",
	"Marriott Description",
	"Drawing Reference",
	"Area",
	"Location",
	"Height (in)",
	"Width (in)",
	"Depth (in)",
	"Height (mm)",
	"Width (mm)",
	"Depth (mm)",
	"Vendor",
	"Manufacturer",
	"Vendor Item ID",
	"Quantity",
	"Unit",
	"Finishes",
	"Finish Category",
	"Finish Selection",
	"Accessories",
	"Special Instructions",
	"Has Image",
	"Has Duplicate",
	"Representative",
	"Phone",
	"Email",
	"Issue Date",
	"Project Name",
	"Project Number",
	"Source File",
}

// quantityCol is the index of "Quantity", written as a number in XLSX.
const quantityCol = 18

// Writer renders item batches.
type Writer struct {
	cfg config.ExportConfig
}

// New creates a Writer.
func New(cfg config.ExportConfig) *Writer {
	if cfg.SheetName == "" {
		cfg.SheetName = "Items"
	}
	if cfg.InstructionDelimiter == "" {
		cfg.InstructionDelimiter = "\n"
	}
	if cfg.ListDelimiter == "" {
		cfg.ListDelimiter = "; "
	}
	return &Writer{cfg: cfg}
}

// Export writes items to out in the given format ("" selects the configured
// default). Every failure wraps model.ErrExportFailure. Items are not
// modified.
func (w *Writer) Export(out io.Writer, items []model.Item, format string) (*model.ExportResult, error) {
	if format == "" {
		format = w.cfg.Format
	}
	format = strings.ToLower(format)

	rows := make([][]string, 0, len(items))
	for _, it := range items {
		row, err := w.Row(it)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	cw := &countingWriter{w: out}
	var err error
	switch format {
	case FormatXLSX:
		err = w.writeXLSX(cw, rows)
	case FormatCSV:
		err = writeCSV(cw, rows)
	default:
		return nil, eris.Wrapf(model.ErrExportFailure, "export: unknown format %q", format)
	}
	if err != nil {
		return nil, eris.Wrapf(model.ErrExportFailure, "export: write %s: %v", format, err)
	}

	zap.L().Info("export written",
		zap.String("component", "export"),
		zap.String("format", format),
		zap.Int("rows", len(rows)),
		zap.Int("bytes", cw.n),
	)
	return &model.ExportResult{Format: format, Rows: len(rows), Bytes: cw.n}, nil
}

// Row renders one item in column order. Millimeter axes left blank are
// derived from their inch counterparts.
func (w *Writer) Row(it model.Item) ([]string, error) {
	mm, err := normalize.FillMillimeters(it.Dimensions, it.DimensionsMm)
	if err != nil {
		return nil, eris.Wrapf(model.ErrExportFailure, "export: item %s dimensions: %v", it.ID, err)
	}

	var contact model.ContactInfo
	if it.ContactInfo != nil {
		contact = *it.ContactInfo
	}
	var project model.ProjectInfo
	if it.ProjectInfo != nil {
		project = *it.ProjectInfo
	}

	return []string{
		it.ID,
		it.Code,
		it.Category,
		it.Name,
		it.Description,
		it.MarriottDescription,
		it.DrawingReference,
		it.Area,
		it.Location,
		it.Dimensions.Height,
		it.Dimensions.Width,
		it.Dimensions.Depth,
		mm.Height,
		mm.Width,
		mm.Depth,
		it.Vendor,
		it.Manufacturer,
		it.VendorItemID,
		strconv.Itoa(it.Quantity),
		it.Unit,
		it.Finishes,
		it.FinishCategory,
		it.FinishSelection,
		strings.Join(it.Accessories, w.cfg.ListDelimiter),
		strings.Join(it.SpecialInstructions, w.cfg.InstructionDelimiter),
		yesNo(it.HasImage),
		yesNo(it.HasDuplicate),
		contact.Representative,
		contact.Phone,
		contact.Email,
		project.IssueDate,
		project.ProjectName,
		project.ProjectNumber,
		it.SourceFile,
	}, nil
}

func (w *Writer) writeXLSX(out io.Writer, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet := w.cfg.SheetName
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return eris.Wrap(err, "rename sheet")
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return eris.Wrap(err, "write header")
	}

	for r, row := range rows {
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v
		}
		if n, err := strconv.Atoi(row[quantityCol]); err == nil {
			values[quantityCol] = n
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return eris.Wrap(err, "cell name")
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return eris.Wrapf(err, "write row %d", r+2)
		}
	}

	// Widen the free-text columns.
	_ = f.SetColWidth(sheet, "D", "E", 36)
	_ = f.SetColWidth(sheet, "X", "Y", 40)

	return f.Write(out)
}

func writeCSV(out io.Writer, rows [][]string) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "write header")
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "write row")
		}
	}
	cw.Flush()
	return cw.Error()
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
