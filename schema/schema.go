package schema

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Type is the semantic type tag of a filterable field. It only decides
// operator rewriting; it is not a storage type.
type Type string

const (
	TypeScalar Type = "scalar"
	TypeArray  Type = "array"
	TypeJSONB  Type = "jsonb"
)

// Fields maps a field name to its type tag.
// It must not be modified while a filter is being compiled against it.
type Fields map[string]Type

// Lookup returns the type of the named field.
func (f Fields) Lookup(name string) (Type, bool) {
	t, ok := f[name]
	return t, ok
}

// UnmarshalYAML lowercases type tags so `JSONB` and `jsonb` are the same tag.
func (f *Fields) UnmarshalYAML(value *yaml.Node) error {
	raw := make(map[string]string)
	if err := value.Decode(&raw); err != nil {
		return err
	}

	fields := make(Fields, len(raw))
	for name, tag := range raw {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			tag = string(TypeScalar)
		}
		fields[name] = Type(tag)
	}

	*f = fields
	return nil
}

// Resource is a filterable table.
type Resource struct {
	Name string `yaml:"-"`

	// Table is the table (or view) queried for this resource.
	Table string `yaml:"table"`

	// Columns is the SELECT list. Empty means every column.
	Columns []string `yaml:"columns"`

	// Fields are the columns that may appear in a filter.
	Fields Fields `yaml:"fields"`

	// SortFields is a whitelist of fields permitted in ORDER BY clauses.
	// If empty, every entry of Fields may be used.
	SortFields []string `yaml:"sort_fields"`

	// DefaultLimit is applied when a request has no limit.
	DefaultLimit int `yaml:"default_limit"`
}

// SortableFields returns the fields permitted in ORDER BY, sorted by name.
func (r Resource) SortableFields() []string {
	if len(r.SortFields) > 0 {
		return r.SortFields
	}

	return slices.Sorted(maps.Keys(r.Fields))
}

// Catalog is the set of resources known to the service.
type Catalog struct {
	Resources map[string]Resource `yaml:"resources"`
}

// Resource returns the named resource.
func (c *Catalog) Resource(name string) (Resource, bool) {
	if c == nil {
		return Resource{}, false
	}
	r, ok := c.Resources[name]
	return r, ok
}

func (c *Catalog) validate() error {
	var errs []error

	for name, r := range c.Resources {
		if r.Table == "" {
			errs = append(errs, fmt.Errorf("resource `%s`: table is required", name))
		}
		if len(r.Fields) == 0 {
			errs = append(errs, fmt.Errorf("resource `%s`: at least one field is required", name))
		}
		if r.DefaultLimit < 0 {
			errs = append(errs, fmt.Errorf("resource `%s`: default_limit cannot be negative", name))
		}
		for _, s := range r.SortFields {
			if _, ok := r.Fields[s]; !ok {
				errs = append(errs, fmt.Errorf("resource `%s`: sort field `%s` is not a field", name, s))
			}
		}
	}

	return errors.Join(errs...)
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("cannot parse catalog: %w", err)
	}

	if c.Resources == nil {
		c.Resources = make(map[string]Resource)
	}

	for name, r := range c.Resources {
		r.Name = name
		c.Resources[name] = r
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	return &c, nil
}

// Load reads and parses the catalog file at path.
func Load(path string) (*Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read catalog file: %w", err)
	}

	return Parse(content)
}
