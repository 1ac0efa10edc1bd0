package align

// FallbackSchemaVersion identifies the hardcoded schema below. Bump it when
// the model's training feature set changes.
const FallbackSchemaVersion = "v1"

// fallbackSchema is the column set used when schema discovery fails: a
// superset of every column the deployed model generations have required,
// numeric columns first, then categorical, matching the discovery endpoint's
// ordering contract.
var fallbackSchema = []string{
	"cc_num",
	"amt",
	"zip",
	"lat",
	"long",
	"city_pop",
	"unix_time",
	"merch_lat",
	"merch_long",
	"trans_date_trans_time",
	"merchant",
	"category",
	"first",
	"last",
	"gender",
	"street",
	"city",
	"state",
	"job",
	"dob",
	"trans_num",
}

// FallbackSchema returns a copy of the fixed fallback column set.
func FallbackSchema() []string {
	out := make([]string, len(fallbackSchema))
	copy(out, fallbackSchema)
	return out
}

// Defaults is a per-field default table. It is handed to the aligner as a
// value at construction time so tests can substitute alternate sets.
type Defaults map[string]interface{}

// defaultTable carries the training-era defaults: plausible values inside
// the distribution the model was trained on, not semantic placeholders.
var defaultTable = Defaults{
	"amt":                   100.0,
	"cc_num":                int64(4000000000000002),
	"zip":                   12345,
	"city_pop":              50000,
	"lat":                   40.7128,
	"long":                  -74.0060,
	"merch_lat":             40.7128,
	"merch_long":            -74.0060,
	"first":                 "John",
	"last":                  "Doe",
	"gender":                "M",
	"street":                "123 Main St",
	"city":                  "Anytown",
	"state":                 "NY",
	"job":                   "Engineer",
	"dob":                   "1990-01-01",
	"merchant":              "Generic Store",
	"category":              "misc_pos",
	"trans_date_trans_time": defaultDatetime,
	"unix_time":             int64(1592222400),
}

// DefaultTable returns a copy of the standard default table.
func DefaultTable() Defaults {
	out := make(Defaults, len(defaultTable))
	for k, v := range defaultTable {
		out[k] = v
	}
	return out
}
