package billing

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed providers.yaml
var defaultProviders []byte

// Catalog lists the providers available for each bill type.
type Catalog map[string][]string

// ParseCatalog decodes a YAML mapping of bill type to provider names.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse provider catalog: %w", err)
	}
	return c, nil
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() Catalog {
	c, err := ParseCatalog(defaultProviders)
	if err != nil {
		panic(err)
	}
	return c
}

// Providers returns the providers for billType, or an empty list.
func (c Catalog) Providers(billType string) []string {
	p := c[billType]
	if p == nil {
		return []string{}
	}
	out := make([]string, len(p))
	copy(out, p)
	return out
}

// Has reports whether provider serves billType.
func (c Catalog) Has(billType, provider string) bool {
	for _, p := range c[billType] {
		if p == provider {
			return true
		}
	}
	return false
}
