package querier

import (
	"fmt"
	"strings"

	"github.com/thisisjab/sieve/fault"
	"github.com/thisisjab/sieve/filter"
)

const (
	LimitMax = 1000

	// DefaultLimit applies when neither the request nor the resource sets one.
	DefaultLimit = 10
)

// Query defines the parameters for filtering rows of one table.
type Query struct {
	// Filter is the compiled filter. Nil selects every row.
	Filter *filter.Compiler

	// Sort defines the order of the results. If multiple fields are provided,
	// they are applied in the order they appear in the slice.
	Sort []SortField `json:"sort_fields"`

	// Limit specifies the maximum number of records to return.
	// Zero returns every matching record.
	Limit int `json:"limit"`

	// Offset skips that many records.
	Offset int `json:"offset"`
}

// SortField defines a single sorting criterion.
type SortField struct {
	// Name is the field to sort by (e.g., "created_at").
	Name string `json:"name"`
	// IsDescending specifies if the sort should be in reverse order.
	IsDescending bool `json:"is_descending"`
}

func (q Query) Validate() error {
	if q.Limit > LimitMax {
		return fault.New(fault.BadInputCode, "").WithMetadata(fault.FieldErrorsMetadata{"limit": []string{fmt.Sprintf("Values larger than %d are not supported.", LimitMax)}})
	}

	if q.Limit < 0 {
		return fault.New(fault.BadInputCode, "").WithMetadata(fault.FieldErrorsMetadata{"limit": []string{"Negative values are not supported."}})
	}

	if q.Offset < 0 {
		return fault.New(fault.BadInputCode, "").WithMetadata(fault.FieldErrorsMetadata{"offset": []string{"Negative values are not supported."}})
	}

	return nil
}

// ParseSort parses an order parameter like `-createdAt,name.en`.
// A leading `-` sorts descending. A `.suffix` (a locale in translated
// resources) is ignored. Names are converted to snake_case.
func ParseSort(order string) []SortField {
	var fields []SortField

	for _, part := range strings.Split(order, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		var f SortField
		if strings.HasPrefix(part, "-") {
			f.IsDescending = true
			part = part[1:]
		}

		if i := strings.IndexByte(part, '.'); i > 0 {
			part = part[:i]
		}

		f.Name = filter.SnakeCase(part)
		if f.Name == "" {
			continue
		}

		fields = append(fields, f)
	}

	return fields
}
