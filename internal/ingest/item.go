package ingest

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/normalize"
)

// buildItem normalizes one draft into an Item. Values that fail to
// normalize are left unset and recorded as warnings; the item is kept. A
// draft whose quantity is zero is not an item and fails with
// model.ErrZeroQuantity.
func buildItem(d *model.Draft, file string) (model.Item, error) {
	it := model.Item{
		Code:                normalize.NormalizeCode(d.Fields[model.FieldCode]),
		Name:                strings.TrimSpace(d.Fields[model.FieldName]),
		Description:         strings.TrimSpace(d.Fields[model.FieldDescription]),
		MarriottDescription: strings.TrimSpace(d.Fields[model.FieldMarriottDescription]),
		DrawingReference:    normalize.NormalizeVendorID(d.Fields[model.FieldDrawingReference]),
		Area:                normalize.CollapseSpace(d.Fields[model.FieldArea]),
		Location:            normalize.CollapseSpace(d.Fields[model.FieldLocation]),
		Vendor:              normalize.CollapseSpace(d.Fields[model.FieldVendor]),
		Manufacturer:        normalize.CollapseSpace(d.Fields[model.FieldManufacturer]),
		VendorItemID:        normalize.NormalizeVendorID(d.Fields[model.FieldVendorItemID]),
		Finishes:            normalize.NormalizeFinishText(d.Fields[model.FieldFinishes]),
		FinishCategory:      normalize.NormalizeFinishCategory(d.Fields[model.FieldFinishCategory]),
		FinishSelection:     normalize.NormalizeFinishText(d.Fields[model.FieldFinishSelection]),
		Accessories:         listField(d, model.FieldAccessories),
		SpecialInstructions: listField(d, model.FieldSpecialInstructions),
		HasImage:            normalize.ParseBool(d.Fields[model.FieldImage]),
		SourceFile:          file,
	}

	warn := func(field, raw string, err error) {
		it.Warnings = append(it.Warnings, model.Warning{
			Field:  field,
			Raw:    raw,
			Reason: err.Error(),
			Source: d.Source,
		})
	}

	it.Category = category(d.Fields[model.FieldCategory], it.Code)
	qty, unit, err := quantity(d, warn)
	if err != nil {
		return model.Item{}, eris.Wrapf(err, "%s", d.Source)
	}
	it.Quantity, it.Unit = qty, unit
	it.Dimensions = dimensions(d, warn)

	mm, err := normalize.FillMillimeters(it.Dimensions, model.Dimensions{})
	if err != nil {
		warn(model.FieldDimensions, "", err)
	}
	it.DimensionsMm = mm

	if len(d.Extra) > 0 {
		it.Extra = make(map[string]string, len(d.Extra))
		for k, v := range d.Extra {
			it.Extra[k] = v
		}
	}
	return it, nil
}

func category(raw, code string) string {
	if strings.TrimSpace(raw) != "" {
		return normalize.NormalizeCategory(raw)
	}
	if c, ok := normalize.CategoryFromCode(code); ok {
		return c
	}
	return model.CategoryMisc
}

// quantity defaults to 1 when absent or malformed; a malformed value is
// warned about. An explicit zero is returned as an error.
func quantity(d *model.Draft, warn func(field, raw string, err error)) (int, string, error) {
	qty, unit := 1, model.DefaultUnit
	if raw := d.Fields[model.FieldQuantity]; raw != "" {
		n, u, err := normalize.ParseQuantity(raw)
		switch {
		case eris.Is(err, model.ErrZeroQuantity):
			return 0, "", err
		case err != nil:
			warn(model.FieldQuantity, raw, err)
		default:
			qty, unit = n, u
		}
	}
	if raw := d.Fields[model.FieldUnit]; strings.TrimSpace(raw) != "" {
		unit = normalize.NormalizeUnit(raw)
	}
	return qty, unit, nil
}

// dimensions reads the combined dimension string first, then lets
// per-axis columns fill or override single axes.
func dimensions(d *model.Draft, warn func(field, raw string, err error)) model.Dimensions {
	var dims model.Dimensions
	if raw := d.Fields[model.FieldDimensions]; raw != "" {
		parsed, err := normalize.ParseDimensions(raw, normalize.Inch)
		if err != nil {
			warn(model.FieldDimensions, raw, err)
		} else {
			dims = parsed
		}
	}

	for _, ax := range []struct {
		field string
		dst   *string
	}{
		{model.FieldHeight, &dims.Height},
		{model.FieldWidth, &dims.Width},
		{model.FieldDepth, &dims.Depth},
	} {
		raw := d.Fields[ax.field]
		if raw == "" {
			continue
		}
		v, err := normalize.NormalizeAxis(raw, normalize.Inch)
		if err != nil {
			warn(ax.field, raw, err)
			continue
		}
		*ax.dst = v
	}
	return dims
}

func listField(d *model.Draft, key string) []string {
	out := []string{}
	for _, raw := range d.Lists[key] {
		out = append(out, normalize.SplitList(raw)...)
	}
	if raw := d.Fields[key]; raw != "" {
		out = append(out, normalize.SplitList(raw)...)
	}
	return out
}

// applyHeader copies document-level project and contact fields onto every
// item of a file.
func applyHeader(items []model.Item, header map[string]string) {
	if len(header) == 0 {
		return
	}
	var project *model.ProjectInfo
	if header[model.FieldIssueDate] != "" || header[model.FieldProjectName] != "" || header[model.FieldProjectNumber] != "" {
		project = &model.ProjectInfo{
			IssueDate:     header[model.FieldIssueDate],
			ProjectName:   header[model.FieldProjectName],
			ProjectNumber: header[model.FieldProjectNumber],
		}
	}
	var contact *model.ContactInfo
	if header[model.FieldRepresentative] != "" || header[model.FieldPhone] != "" || header[model.FieldEmail] != "" {
		contact = &model.ContactInfo{
			Representative: header[model.FieldRepresentative],
			Phone:          header[model.FieldPhone],
			Email:          header[model.FieldEmail],
		}
	}
	for i := range items {
		if project != nil && items[i].ProjectInfo == nil {
			p := *project
			items[i].ProjectInfo = &p
		}
		if contact != nil && items[i].ContactInfo == nil {
			c := *contact
			items[i].ContactInfo = &c
		}
	}
}
