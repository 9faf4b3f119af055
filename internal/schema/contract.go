// Package schema declares the transform contract: which field paths must be
// present in the raw document, which multi-valued fields expand into rows,
// and the fixed output column set with defaults and target types.
//
// The contract is data, not code. The built-in Countries() contract matches
// the restcountries v3 document shape, and callers can supply their own
// contract in the pipeline config to add or remove columns without touching
// the transformer.
package schema

import (
	"fmt"
	"strings"
)

// Column types understood by the coercer and the storage backends.
const (
	TypeText    = "text"
	TypeInteger = "integer"
	TypeReal    = "real"
)

// Contract is the declared schema for one dataset.
type Contract struct {
	// RequiredPaths are dotted paths that must exist in the collection's
	// structural schema before any transformation runs.
	RequiredPaths []string `json:"required_paths"`

	// Explode lists the map-typed fields whose entries each produce an
	// output row (outer semantics: an absent or empty field still yields
	// one row of null placeholders).
	Explode []Explosion `json:"explode"`

	// Columns is the output column set, in output order.
	Columns []Column `json:"columns"`
}

// Explosion designates one explodable field. As is the alias under which the
// current entry is addressable in column sources: "<as>.key", "<as>.value"
// and "<as>.value.<sub>".
type Explosion struct {
	Field string `json:"field"`
	As    string `json:"as"`
}

// Column declares one output column.
//
// Source is a dotted path resolved against the record (or against an
// exploded entry when it starts with an explosion alias). When a path step
// lands on an ordered list, the first element is taken; an empty list
// resolves to null. Default substitutes for null after flattening, so it
// must match the declared type: numeric columns need numeric defaults.
type Column struct {
	Name    string `json:"name"`
	Source  string `json:"source"`
	Type    string `json:"type"`
	Default any    `json:"default"`
}

// Countries is the built-in contract for the restcountries v3 document.
func Countries() Contract {
	return Contract{
		RequiredPaths: []string{
			"name.common",
			"capital",
			"population",
			"area",
			"currencies",
			"languages",
		},
		Explode: []Explosion{
			{Field: "currencies", As: "currency"},
			{Field: "languages", As: "language"},
		},
		Columns: []Column{
			{Name: "country_name", Source: "name.common", Type: TypeText, Default: "N/A"},
			{Name: "capital", Source: "capital", Type: TypeText, Default: "N/A"},
			{Name: "population", Source: "population", Type: TypeInteger, Default: int64(0)},
			{Name: "area", Source: "area", Type: TypeReal, Default: float64(0)},
			{Name: "currency_code", Source: "currency.key", Type: TypeText, Default: "N/A"},
			{Name: "currency_name", Source: "currency.value.name", Type: TypeText, Default: "N/A"},
			{Name: "language_code", Source: "language.key", Type: TypeText, Default: "N/A"},
			{Name: "language_name", Source: "language.value", Type: TypeText, Default: "N/A"},
		},
	}
}

// ColumnNames returns the output column names in declaration order.
func (c Contract) ColumnNames() []string {
	out := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		out[i] = col.Name
	}
	return out
}

// Types returns the column -> type mapping.
func (c Contract) Types() map[string]string {
	out := make(map[string]string, len(c.Columns))
	for _, col := range c.Columns {
		out[col.Name] = col.Type
	}
	return out
}

// Defaults returns the column -> default-value mapping.
func (c Contract) Defaults() map[string]any {
	out := make(map[string]any, len(c.Columns))
	for _, col := range c.Columns {
		out[col.Name] = col.Default
	}
	return out
}

// Validate checks the contract's internal consistency. It returns the first
// problem found; contracts are small enough that one-at-a-time is fine.
func (c Contract) Validate() error {
	if len(c.Columns) == 0 {
		return fmt.Errorf("contract: no columns declared")
	}

	aliases := make(map[string]string, len(c.Explode))
	for _, ex := range c.Explode {
		if ex.Field == "" || ex.As == "" {
			return fmt.Errorf("contract: explode entries need both field and as")
		}
		if prev, dup := aliases[ex.As]; dup {
			return fmt.Errorf("contract: explode alias %q used for both %q and %q", ex.As, prev, ex.Field)
		}
		aliases[ex.As] = ex.Field
	}

	seen := make(map[string]struct{}, len(c.Columns))
	for _, col := range c.Columns {
		if col.Name == "" {
			return fmt.Errorf("contract: column with empty name")
		}
		if _, dup := seen[col.Name]; dup {
			return fmt.Errorf("contract: duplicate column %q", col.Name)
		}
		seen[col.Name] = struct{}{}

		if col.Source == "" {
			return fmt.Errorf("contract: column %q has no source path", col.Name)
		}

		switch col.Type {
		case TypeText:
			if _, ok := col.Default.(string); col.Default != nil && !ok {
				return fmt.Errorf("contract: column %q: text default must be a string, got %T", col.Name, col.Default)
			}
		case TypeInteger, TypeReal:
			// A textual placeholder default on a numeric column would turn
			// every null into a guaranteed coercion failure downstream.
			switch col.Default.(type) {
			case int, int64, float64:
			default:
				return fmt.Errorf("contract: column %q: %s default must be numeric, got %T (%v)",
					col.Name, col.Type, col.Default, col.Default)
			}
		default:
			return fmt.Errorf("contract: column %q: unknown type %q", col.Name, col.Type)
		}

		if alias, rest, ok := strings.Cut(col.Source, "."); ok {
			_ = rest
			if _, isAlias := aliases[alias]; isAlias {
				continue
			}
		} else if _, isAlias := aliases[col.Source]; isAlias {
			return fmt.Errorf("contract: column %q: source %q is a bare explode alias; use %q or %q",
				col.Name, col.Source, col.Source+".key", col.Source+".value")
		}
	}

	return nil
}
