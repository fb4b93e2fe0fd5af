package speculate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"securecode/internal/types"
)

// Guidance is the per-category prompt material: what property the
// contract must capture and a worked example in contract form.
type Guidance struct {
	Property string `yaml:"property"`
	Example  string `yaml:"example"`
}

// Catalog maps vulnerability categories to speculation guidance.
// Unknown categories fall back to the generic entry.
type Catalog struct {
	entries map[types.Category]Guidance
}

// DefaultCatalog returns the compiled-in guidance set.
func DefaultCatalog() *Catalog {
	return &Catalog{entries: map[types.Category]Guidance{
		types.CategoryInjection: {
			Property: "No attacker-controlled input may alter the structure of the query or command. The contract must assert that dangerous metacharacters in the input cannot reach the sink unescaped, or that the sink only receives parameterized values.",
			Example: `@icontract.require(lambda user_input: "'" not in user_input and ";" not in user_input and "--" not in user_input)`,
		},
		types.CategoryPathTraversal: {
			Property: "The resolved file path must stay inside the intended base directory. The contract must reject inputs containing parent-directory segments or absolute paths.",
			Example: `@icontract.require(lambda filename: ".." not in filename and not filename.startswith("/"))`,
		},
		types.CategoryDeserialization: {
			Property: "Untrusted bytes must never reach an unsafe deserializer. The contract must assert the payload was produced by a trusted serializer or that a safe loader is used.",
			Example: `@icontract.require(lambda data: is_trusted_payload(data))`,
		},
		types.CategoryCredentialExposure: {
			Property: "No literal secret may appear in the code path. The contract must assert credentials are drawn from the environment or a secret store, never from constants.",
			Example: `@icontract.require(lambda password: password == os.environ.get("SERVICE_PASSWORD"))`,
		},
		types.CategoryRequestForgery: {
			Property: "Outbound request targets must resolve to an allow-listed host. The contract must reject URLs pointing at internal addresses or unexpected schemes.",
			Example: `@icontract.require(lambda url: urlparse(url).hostname in ALLOWED_HOSTS)`,
		},
		types.CategoryOther: {
			Property: "State the safety property the flagged code must uphold and express it as executable pre/post-conditions over the function's inputs and outputs.",
			Example:  `@icontract.require(lambda value: is_safe(value))`,
		},
	}}
}

// LoadCatalog reads a YAML category->guidance mapping and overlays it
// on the defaults, so a partial file only overrides what it names.
func LoadCatalog(path string) (*Catalog, error) {
	cat := DefaultCatalog()
	if path == "" {
		return cat, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	var loaded map[types.Category]Guidance
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	for category, g := range loaded {
		cat.entries[category] = g
	}
	return cat, nil
}

// Lookup returns the guidance for a category, falling back to the
// generic entry.
func (c *Catalog) Lookup(category types.Category) Guidance {
	if g, ok := c.entries[category]; ok {
		return g
	}
	return c.entries[types.CategoryOther]
}
