package model

// Field keys recognised by the header/label alias table.
const (
	FieldCode                = "code"
	FieldCategory            = "category"
	FieldName                = "name"
	FieldDescription         = "description"
	FieldMarriottDescription = "marriott_description"
	FieldDrawingReference    = "drawing_reference"
	FieldArea                = "area"
	FieldLocation            = "location"
	FieldDimensions          = "dimensions"
	FieldHeight              = "height"
	FieldWidth               = "width"
	FieldDepth               = "depth"
	FieldVendor              = "vendor"
	FieldManufacturer        = "manufacturer"
	FieldVendorItemID        = "vendor_item_id"
	FieldQuantity            = "quantity"
	FieldUnit                = "unit"
	FieldFinishes            = "finishes"
	FieldFinishCategory      = "finish_category"
	FieldFinishSelection     = "finish_selection"
	FieldAccessories         = "accessories"
	FieldSpecialInstructions = "special_instructions"
	FieldImage               = "image"

	FieldIssueDate      = "issue_date"
	FieldProjectName    = "project_name"
	FieldProjectNumber  = "project_number"
	FieldRepresentative = "representative"
	FieldPhone          = "phone"
	FieldEmail          = "email"
)

// ItemFields lists the per-item field keys in export/display order.
var ItemFields = []string{
	FieldCode, FieldCategory, FieldName, FieldDescription, FieldMarriottDescription,
	FieldDrawingReference, FieldArea, FieldLocation, FieldDimensions, FieldHeight,
	FieldWidth, FieldDepth, FieldVendor, FieldManufacturer, FieldVendorItemID,
	FieldQuantity, FieldUnit, FieldFinishes, FieldFinishCategory, FieldFinishSelection,
	FieldAccessories, FieldSpecialInstructions, FieldImage,
}

// HeaderFields are document-level keys that apply to every item in a file.
var HeaderFields = []string{
	FieldIssueDate, FieldProjectName, FieldProjectNumber,
	FieldRepresentative, FieldPhone, FieldEmail,
}

// Draft is an unnormalized, pre-id item extracted from one source fragment
// (one row, one block, one page region).
type Draft struct {
	// Fields maps a field key to its raw text. List fields may repeat and
	// are kept in Lists instead.
	Fields map[string]string   `json:"fields"`
	Lists  map[string][]string `json:"lists,omitempty"`
	// Extra holds unmapped columns/labels keyed by their original header.
	Extra map[string]string `json:"extra,omitempty"`
	// Source locates the fragment ("Sheet1!R4", "page 2", "block 7").
	Source string `json:"source"`
}

// NewDraft returns an empty draft for the given source fragment.
func NewDraft(source string) *Draft {
	return &Draft{
		Fields: make(map[string]string),
		Lists:  make(map[string][]string),
		Extra:  make(map[string]string),
		Source: source,
	}
}

// Set records a field value, keeping the first non-empty one.
func (d *Draft) Set(key, value string) {
	if value == "" {
		return
	}
	if _, ok := d.Fields[key]; ok {
		return
	}
	d.Fields[key] = value
}

// Append adds a value to a list field.
func (d *Draft) Append(key, value string) {
	if value == "" {
		return
	}
	d.Lists[key] = append(d.Lists[key], value)
}

// Has reports whether the draft carries a non-empty value for key.
func (d *Draft) Has(key string) bool {
	return d.Fields[key] != ""
}

// Empty reports whether nothing item-specific was captured.
func (d *Draft) Empty() bool {
	return len(d.Fields) == 0 && len(d.Lists) == 0
}

// Warning records a value that could not be normalized. The field is left
// unset on the item and the draft is kept.
type Warning struct {
	Field  string `json:"field"`
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
	Source string `json:"source,omitempty"`
}
