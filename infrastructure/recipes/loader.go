package recipes

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"shop_replay/domain/entities"

	"gopkg.in/yaml.v3"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Builtin returns the recipes shipped with the binary
func Builtin() ([]entities.VendorRecipe, error) {
	recipes, err := Parse(builtinYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in recipes: %w", err)
	}
	return recipes, nil
}

// Parse decodes and validates a YAML list of recipes
func Parse(data []byte) ([]entities.VendorRecipe, error) {
	var recipes []entities.VendorRecipe
	if err := yaml.Unmarshal(data, &recipes); err != nil {
		return nil, err
	}
	for i := range recipes {
		if err := validate(&recipes[i]); err != nil {
			return nil, fmt.Errorf("recipe %d: %w", i, err)
		}
	}
	return recipes, nil
}

// LoadFile reads recipes from path
func LoadFile(path string) ([]entities.VendorRecipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipes %s: %w", path, err)
	}
	recipes, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recipes %s: %w", path, err)
	}
	return recipes, nil
}

// Load returns the built-in recipes followed by the ones in path, if any.
// A file recipe with the name of a built-in one replaces it.
func Load(path string) ([]entities.VendorRecipe, error) {
	recipes, err := Builtin()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return recipes, nil
	}

	extra, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	for _, r := range extra {
		replaced := false
		for i := range recipes {
			if recipes[i].Name == r.Name {
				recipes[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			recipes = append(recipes, r)
		}
	}
	return recipes, nil
}

func validate(r *entities.VendorRecipe) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return fmt.Errorf("missing name")
	}
	if len(r.Hosts) == 0 {
		return fmt.Errorf("%s: no hosts", r.Name)
	}
	switch r.Intent {
	case entities.IntentSearchInput, entities.IntentProductListing, entities.IntentProductImage, entities.IntentButtonByText:
	default:
		return fmt.Errorf("%s: unknown intent %q", r.Name, r.Intent)
	}
	if len(r.Steps) == 0 {
		return fmt.Errorf("%s: no steps", r.Name)
	}
	for i, s := range r.Steps {
		if len(s.Candidates) == 0 {
			return fmt.Errorf("%s: step %d has no candidates", r.Name, i)
		}
	}
	return nil
}
