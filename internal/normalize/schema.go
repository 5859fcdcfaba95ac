package normalize

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ColumnSchema maps the canonical transaction fields to ordered lists of
// header aliases. Matching is a case-insensitive substring test, evaluated
// in declaration order; the first matching column wins. The first date
// alias doubles as the marker token used to locate the header row.
type ColumnSchema struct {
	Date        []string `yaml:"date"`
	Description []string `yaml:"description"`
	Category    []string `yaml:"category"`
	Amount      []string `yaml:"amount"`
}

// DefaultSchema matches the supported bank export ("Lista Operazione"
// sheet with Data/Operazione/Categoria/Importo headers).
func DefaultSchema() ColumnSchema {
	return ColumnSchema{
		Date:        []string{"data"},
		Description: []string{"operazione", "descrizione"},
		Category:    []string{"categoria"},
		Amount:      []string{"importo"},
	}
}

// LoadSchema reads a column schema from a YAML file. Fields left empty in
// the file fall back to the default aliases.
func LoadSchema(path string) (ColumnSchema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ColumnSchema{}, fmt.Errorf("read schema file: %w", err)
	}
	s := DefaultSchema()
	var loaded ColumnSchema
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return ColumnSchema{}, fmt.Errorf("parse schema file: %w", err)
	}
	if len(loaded.Date) > 0 {
		s.Date = loaded.Date
	}
	if len(loaded.Description) > 0 {
		s.Description = loaded.Description
	}
	if len(loaded.Category) > 0 {
		s.Category = loaded.Category
	}
	if len(loaded.Amount) > 0 {
		s.Amount = loaded.Amount
	}
	return s, nil
}

// Validate ensures every canonical field has at least one alias.
func (s ColumnSchema) Validate() error {
	var missing []string
	if len(s.Date) == 0 {
		missing = append(missing, "date")
	}
	if len(s.Description) == 0 {
		missing = append(missing, "description")
	}
	if len(s.Category) == 0 {
		missing = append(missing, "category")
	}
	if len(s.Amount) == 0 {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return fmt.Errorf("schema has no aliases for: %s", strings.Join(missing, ", "))
	}
	return nil
}

// dateMarker is the token that identifies the header row.
func (s ColumnSchema) dateMarker() string {
	return s.Date[0]
}

// resolve finds the column index for each canonical field in a header row.
// Aliases are tried in order; within one alias, columns are scanned left to
// right. Returns -1 for unresolved fields.
func resolveColumn(header []string, aliases []string) int {
	for _, alias := range aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias == "" {
			continue
		}
		for j, cell := range header {
			if strings.Contains(strings.ToLower(strings.TrimSpace(cell)), alias) {
				return j
			}
		}
	}
	return -1
}
