package extract

import (
	"bytes"
	"encoding/json"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/normalize"
)

// defaultAliases is the header/label vocabulary shared by spreadsheet
// headers and document labels.
var defaultAliases = map[string][]string{
	model.FieldCode:                {"item #", "item", "item no", "item number", "item code", "code", "spec #", "spec no", "tag", "tag #", "item id", "ref #"},
	model.FieldCategory:            {"category", "cat", "item type", "type", "class"},
	model.FieldName:                {"name", "item name", "product", "product name", "title"},
	model.FieldDescription:         {"description", "desc", "item description", "product description", "specification"},
	model.FieldMarriottDescription: {"marriott description", "brand description", "brand standard description"},
	model.FieldDrawingReference:    {"drawing reference", "drawing ref", "dwg ref", "drawing #", "dwg #", "drawing"},
	model.FieldArea:                {"area", "room", "space"},
	model.FieldLocation:            {"location", "loc", "placement"},
	model.FieldDimensions:          {"dimensions", "dimension", "dims", "size", "overall dimensions"},
	model.FieldHeight:              {"height", "h", "ht"},
	model.FieldWidth:               {"width", "w", "wd", "length"},
	model.FieldDepth:               {"depth", "d", "dp"},
	model.FieldVendor:              {"vendor", "vendor name", "supplier", "source"},
	model.FieldManufacturer:        {"manufacturer", "mfr", "mfg", "maker", "brand"},
	model.FieldVendorItemID:        {"vendor item id", "vendor sku", "sku", "vendor #", "vendor item #", "model #", "model no", "model number", "catalog #", "catalog number", "part #", "mfr #"},
	model.FieldQuantity:            {"qty", "quantity", "total qty", "total quantity", "count"},
	model.FieldUnit:                {"unit", "uom", "units", "unit of measure"},
	model.FieldFinishes:            {"finish", "finishes", "finish description", "material", "materials"},
	model.FieldFinishCategory:      {"finish category", "finish cat", "finish code"},
	model.FieldFinishSelection:     {"finish selection", "finish sel", "selection"},
	model.FieldAccessories:         {"accessories", "accessory", "options"},
	model.FieldSpecialInstructions: {"special instructions", "instructions", "notes", "remarks", "comments"},
	model.FieldImage:               {"image", "has image", "photo", "picture"},

	model.FieldIssueDate:      {"issue date", "date issued", "issued"},
	model.FieldProjectName:    {"project", "project name"},
	model.FieldProjectNumber:  {"project #", "project no", "project number", "job #"},
	model.FieldRepresentative: {"representative", "rep", "sales rep", "contact"},
	model.FieldPhone:          {"phone", "tel", "telephone"},
	model.FieldEmail:          {"email", "e-mail"},
}

// aliasSchema constrains alias files: field keys map to lists of header
// spellings.
const aliasSchema = `{
  "type": "object",
  "required": ["aliases"],
  "additionalProperties": false,
  "properties": {
    "replace": {"type": "boolean"},
    "aliases": {
      "type": "object",
      "propertyNames": {"enum": %s},
      "additionalProperties": {
        "type": "array",
        "items": {"type": "string", "minLength": 1}
      }
    }
  }
}`

var (
	parenRe = regexp.MustCompile(`\s*\(([^)]*)\)\s*$`)
)

// Match is the result of looking a header or label up in the alias table.
type Match struct {
	Field string
	// Unit is a unit hint from a parenthetical such as "Width (mm)".
	Unit normalize.Unit
}

// AliasTable maps normalized header text to field keys.
type AliasTable struct {
	byHeader map[string]string
	labelRe  *regexp.Regexp
}

// NewAliasTable builds a table from field → spellings.
func NewAliasTable(aliases map[string][]string) *AliasTable {
	t := &AliasTable{byHeader: make(map[string]string)}
	for field, spellings := range aliases {
		for _, s := range spellings {
			t.byHeader[normalizeHeader(s)] = field
		}
	}
	t.labelRe = t.buildLabelRe()
	return t
}

// DefaultAliasTable returns the built-in vocabulary.
func DefaultAliasTable() *AliasTable {
	return NewAliasTable(defaultAliases)
}

// LoadAliases reads a YAML alias file, validates it against the alias
// schema and merges it over the defaults (or replaces them when the file
// sets replace: true). An empty path returns the defaults.
func LoadAliases(path string) (*AliasTable, error) {
	if path == "" {
		return DefaultAliasTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read alias file %s", path)
	}
	return ParseAliases(data)
}

// ParseAliases is LoadAliases over in-memory YAML.
func ParseAliases(data []byte) (*AliasTable, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "extract: parse alias file")
	}
	if err := validateAliasDoc(doc); err != nil {
		return nil, err
	}

	var file struct {
		Replace bool                `yaml:"replace"`
		Aliases map[string][]string `yaml:"aliases"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "extract: decode alias file")
	}

	merged := make(map[string][]string)
	if !file.Replace {
		for field, spellings := range defaultAliases {
			merged[field] = append([]string{}, spellings...)
		}
	}
	for field, spellings := range file.Aliases {
		merged[field] = append(merged[field], spellings...)
	}
	return NewAliasTable(merged), nil
}

func validateAliasDoc(doc map[string]any) error {
	keys := make([]string, 0, len(defaultAliases))
	for k := range defaultAliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	enum, _ := json.Marshal(keys)

	compiler := jsonschema.NewCompiler()
	schemaDoc := strings.Replace(aliasSchema, "%s", string(enum), 1)
	if err := compiler.AddResource("aliases.json", bytes.NewReader([]byte(schemaDoc))); err != nil {
		return eris.Wrap(err, "extract: add alias schema")
	}
	schema, err := compiler.Compile("aliases.json")
	if err != nil {
		return eris.Wrap(err, "extract: compile alias schema")
	}

	// Round-trip through JSON so YAML scalars take JSON types.
	raw, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "extract: marshal alias file")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return eris.Wrap(err, "extract: unmarshal alias file")
	}
	if err := schema.Validate(v); err != nil {
		return eris.Wrap(err, "extract: alias file does not match schema")
	}
	return nil
}

// Lookup maps a header cell or document label to a field.
func (t *AliasTable) Lookup(header string) (Match, bool) {
	h := normalizeHeader(header)
	if h == "" {
		return Match{}, false
	}
	if f, ok := t.byHeader[h]; ok {
		return Match{Field: f}, true
	}
	// "Width (mm)", "Qty (EA)"
	if m := parenRe.FindStringSubmatchIndex(h); m != nil {
		base := strings.TrimSpace(h[:m[0]])
		hint := h[m[2]:m[3]]
		if f, ok := t.byHeader[base]; ok {
			return Match{Field: f, Unit: unitHint(hint)}, true
		}
	}
	return Match{}, false
}

// Entries returns the table as field → sorted spellings.
func (t *AliasTable) Entries() map[string][]string {
	out := make(map[string][]string)
	for h, f := range t.byHeader {
		out[f] = append(out[f], h)
	}
	for f := range out {
		sort.Strings(out[f])
	}
	return out
}

// LabelPattern matches "LABEL:" occurrences for every known spelling,
// longest first.
func (t *AliasTable) LabelPattern() *regexp.Regexp {
	return t.labelRe
}

func (t *AliasTable) buildLabelRe() *regexp.Regexp {
	headers := make([]string, 0, len(t.byHeader))
	for h := range t.byHeader {
		headers = append(headers, h)
	}
	sort.Slice(headers, func(i, j int) bool {
		if len(headers[i]) != len(headers[j]) {
			return len(headers[i]) > len(headers[j])
		}
		return headers[i] < headers[j]
	})
	quoted := make([]string, len(headers))
	for i, h := range headers {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(h), " ", `\s+`)
	}
	return regexp.MustCompile(`(?i)(?:^|[\s|,;])(` + strings.Join(quoted, "|") + `)(?:\s*\([^)]*\))?\s*:`)
}

// normalizeHeader lower-cases, collapses whitespace and drops trailing
// colons/periods so "DESCRIPTION:" and "Description" compare equal.
func normalizeHeader(s string) string {
	s = strings.ToLower(normalize.CollapseSpace(s))
	s = strings.TrimRight(s, ":. ")
	s = strings.ReplaceAll(s, "no.", "no")
	return strings.TrimSpace(s)
}

func unitHint(s string) normalize.Unit {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "mm", "millimeters", "millimetres":
		return normalize.Millimeter
	case "cm", "centimeters", "centimetres":
		return normalize.Centimeter
	case "in", "inch", "inches", `"`:
		return normalize.Inch
	case "ft", "feet":
		return normalize.Foot
	default:
		return ""
	}
}
