package model

import "strings"

// Category codes recognised by the extractors. The set is open: anything
// unrecognised passes through as CategoryMisc.
const (
	CategoryFurniture   = "FF"
	CategoryAccessories = "AC"
	CategoryLighting    = "LT"
	CategoryCasegoods   = "CG"
	CategoryDrapery     = "DW"
	CategoryMisc        = "MISC"
)

// CodeAbsent is the placeholder for an item without a vendor/internal code.
const CodeAbsent = "N/A"

// DefaultUnit is applied when a source row carries no unit of measure.
const DefaultUnit = "EA"

// Dimensions holds per-axis measurements as decimal strings.
// Item.Dimensions is in inches, Item.DimensionsMm in millimeters.
type Dimensions struct {
	Height string `json:"height"`
	Width  string `json:"width"`
	Depth  string `json:"depth"`
}

// IsZero reports whether no axis is populated.
func (d Dimensions) IsZero() bool {
	return d.Height == "" && d.Width == "" && d.Depth == ""
}

// ContactInfo is the vendor representative block of a specification sheet.
type ContactInfo struct {
	Representative string `json:"representative,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
}

// ProjectInfo is the project header block of a specification sheet.
type ProjectInfo struct {
	IssueDate     string `json:"issue_date,omitempty"`
	ProjectName   string `json:"project_name,omitempty"`
	ProjectNumber string `json:"project_number,omitempty"`
}

// Item is the canonical record for one furniture/fixture line item.
type Item struct {
	ID                  string       `json:"id"`
	Code                string       `json:"code"`
	Category            string       `json:"category"`
	Name                string       `json:"name"`
	Description         string       `json:"description"`
	MarriottDescription string       `json:"marriott_description,omitempty"`
	DrawingReference    string       `json:"drawing_reference,omitempty"`
	Area                string       `json:"area,omitempty"`
	Location            string       `json:"location,omitempty"`
	Dimensions          Dimensions   `json:"dimensions"`
	DimensionsMm        Dimensions   `json:"dimensions_mm"`
	Vendor              string       `json:"vendor"`
	Manufacturer        string       `json:"manufacturer"`
	VendorItemID        string       `json:"vendor_item_id"`
	Quantity            int          `json:"quantity"`
	Unit                string       `json:"unit"`
	Finishes            string       `json:"finishes"`
	FinishCategory      string       `json:"finish_category"`
	FinishSelection     string       `json:"finish_selection"`
	Accessories         []string     `json:"accessories"`
	SpecialInstructions []string     `json:"special_instructions"`
	HasImage            bool         `json:"has_image"`
	HasDuplicate        bool         `json:"has_duplicate"`
	ContactInfo         *ContactInfo `json:"contact_info,omitempty"`
	ProjectInfo         *ProjectInfo `json:"project_info,omitempty"`
	SourceFile          string       `json:"source_file,omitempty"`
	Warnings            []Warning    `json:"warnings,omitempty"`

	// Extra keeps unmapped columns and labels by their original header.
	Extra map[string]string `json:"extra,omitempty"`
}

// Place returns the area, falling back to the location.
func (it Item) Place() string {
	if it.Area != "" {
		return it.Area
	}
	return it.Location
}

// PopulatedOptional counts the optional fields that carry a value. The
// consolidator uses it to pick the primary member of a duplicate group.
func (it Item) PopulatedOptional() int {
	n := 0
	for _, s := range []string{
		it.Name, it.Description, it.MarriottDescription, it.DrawingReference,
		it.Area, it.Location, it.Vendor, it.Manufacturer, it.VendorItemID,
		it.Finishes, it.FinishCategory, it.FinishSelection,
		it.Dimensions.Height, it.Dimensions.Width, it.Dimensions.Depth,
	} {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	if it.Code != "" && it.Code != CodeAbsent {
		n++
	}
	if len(it.Accessories) > 0 {
		n++
	}
	if len(it.SpecialInstructions) > 0 {
		n++
	}
	if it.ContactInfo != nil {
		n++
	}
	if it.ProjectInfo != nil {
		n++
	}
	return n
}

// Clone returns a deep copy so callers can mutate the result without
// touching the input batch.
func (it Item) Clone() Item {
	c := it
	c.Accessories = append([]string{}, it.Accessories...)
	c.SpecialInstructions = append([]string{}, it.SpecialInstructions...)
	if it.Warnings != nil {
		c.Warnings = append([]Warning(nil), it.Warnings...)
	}
	if it.Extra != nil {
		c.Extra = make(map[string]string, len(it.Extra))
		for k, v := range it.Extra {
			c.Extra[k] = v
		}
	}
	if it.ContactInfo != nil {
		ci := *it.ContactInfo
		c.ContactInfo = &ci
	}
	if it.ProjectInfo != nil {
		pi := *it.ProjectInfo
		c.ProjectInfo = &pi
	}
	return c
}

// CloneItems deep-copies a batch.
func CloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

// FilterItems returns the items whose code, name, description or
// area/location contain term, case-insensitively. An empty term returns
// every item.
func FilterItems(items []Item, term string) []Item {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return items
	}
	out := []Item{}
	for _, it := range items {
		for _, field := range []string{it.Code, it.Name, it.Description, it.Place()} {
			if strings.Contains(strings.ToLower(field), term) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}
