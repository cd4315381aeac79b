package recipes

import (
	"os"
	"path/filepath"
	"testing"

	"shop_replay/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinAppleRecipe(t *testing.T) {
	recipes, err := Builtin()
	require.NoError(t, err)
	require.Len(t, recipes, 1)

	apple := recipes[0]
	assert.Equal(t, "apple", apple.Name)
	assert.Equal(t, []string{"apple.com"}, apple.Hosts)
	assert.Equal(t, entities.IntentSearchInput, apple.Intent)
	require.Len(t, apple.Steps, 2)
	assert.Equal(t, "#ac-gn-searchform", apple.Steps[0].Candidates[0])
	assert.Equal(t, 2000, apple.Steps[0].SettleMS)
	assert.Equal(t, entities.ElementSearchIcon, apple.Steps[0].ElementType)
	assert.Equal(t, "#ac-gn-searchform-input", apple.Steps[1].Candidates[0])
	assert.Len(t, apple.Steps[1].Candidates, 5)
}

func TestLoadMergesFileRecipes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- name: apple
  hosts: [apple.com]
  intent: search_input
  steps:
    - candidates: ["#new-input"]
- name: bestbuy
  hosts: [bestbuy.com]
  intent: search_input
  steps:
    - description: open search
      candidates: ["button.header-search-button"]
    - candidates: ["#gh-search-input"]
`), 0o644))

	recipes, err := Load(path)
	require.NoError(t, err)
	require.Len(t, recipes, 2)
	assert.Equal(t, []string{"#new-input"}, recipes[0].Steps[0].Candidates)
	assert.Equal(t, "bestbuy", recipes[1].Name)
}

func TestParseRejectsInvalidRecipes(t *testing.T) {
	cases := map[string]string{
		"no hosts":      "- {name: x, intent: search_input, steps: [{candidates: [a]}]}",
		"bad intent":    "- {name: x, hosts: [x.test], intent: teleport, steps: [{candidates: [a]}]}",
		"no steps":      "- {name: x, hosts: [x.test], intent: search_input}",
		"no candidates": "- {name: x, hosts: [x.test], intent: search_input, steps: [{description: d}]}",
		"not yaml list": "name: x",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
