package level

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is an ordered list of levels played in sequence.
type Catalog struct {
	Levels []Level `yaml:"levels"`
}

// LoadCatalog reads a YAML catalog, checks it against the CUE schema, then
// decodes it strictly and validates every level.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading level catalog: %w", err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	if err := ValidateSchema("catalog.yaml", data); err != nil {
		return nil, err
	}
	var c Catalog
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil {
		return nil, fmt.Errorf("parsing level catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every level and that titles are unique.
func (c *Catalog) Validate() error {
	if len(c.Levels) == 0 {
		return fmt.Errorf("level catalog is empty")
	}
	seen := make(map[string]bool, len(c.Levels))
	for i, l := range c.Levels {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("level[%d]: %w", i, err)
		}
		if seen[l.Title] {
			return fmt.Errorf("level[%d]: duplicate title %q", i, l.Title)
		}
		seen[l.Title] = true
	}
	return nil
}

// Find returns the index of the level with the given title.
func (c *Catalog) Find(title string) (int, bool) {
	for i, l := range c.Levels {
		if l.Title == title {
			return i, true
		}
	}
	return 0, false
}

// Encode writes the catalog as YAML.
func (c *Catalog) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding level catalog: %w", err)
	}
	return enc.Close()
}
