package simulation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trafficsim/backend/internal/domain/traffic"
)

const personaCatalogYAML = `personas:
  - name: Bargain Hunter
    goal_keywords:
      deals: 8
      outlet: 5
    generic_keywords:
      products: 2
    navigation_depth: {min: 2, max: 4}
    dwell_time_seconds: {min: 5, max: 9}
    can_fill_forms: true
    scroll_probability: 0.5
    form_interaction_probability: 0.4
    goal:
      type: find_and_click
      params:
        target_text: add to cart
  - name: Headline Skimmer
`

func writePersonasFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "personas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPersonasFile(t *testing.T) {
	path := writePersonasFile(t, personaCatalogYAML)

	personas, err := LoadPersonasFile(path)
	require.NoError(t, err)
	require.Len(t, personas, 2)

	hunter := personas[0]
	assert.Equal(t, "Bargain Hunter", hunter.Name)
	assert.Equal(t, 8, hunter.GoalKeywords["deals"])
	assert.Equal(t, 2, hunter.GenericKeywords["products"])
	assert.Equal(t, traffic.IntRange{Min: 2, Max: 4}, hunter.NavigationDepth)
	assert.Equal(t, traffic.DurationRange{Min: 5 * time.Second, Max: 9 * time.Second}, hunter.DwellTime)
	assert.True(t, hunter.CanFillForms)
	assert.Equal(t, 0.5, hunter.ScrollProbability)
	assert.Equal(t, 0.4, hunter.FormInteractionProbability)
	require.NotNil(t, hunter.Goal)
	assert.Equal(t, traffic.MissionFindAndClick, hunter.Goal.Type)
	require.NotNil(t, hunter.Goal.FindAndClick)
	assert.Equal(t, "add to cart", hunter.Goal.FindAndClick.TargetText)

	// The second entry sets nothing but the name and keeps construction
	// defaults for everything else.
	skimmer := personas[1]
	assert.Equal(t, "Headline Skimmer", skimmer.Name)
	assert.Equal(t, traffic.IntRange{Min: 3, Max: 6}, skimmer.NavigationDepth)
	assert.Equal(t, traffic.DurationRange{Min: 20 * time.Second, Max: 60 * time.Second}, skimmer.DwellTime)
	assert.False(t, skimmer.CanFillForms)
	assert.Equal(t, 0.85, skimmer.ScrollProbability)
	assert.Equal(t, 0.25, skimmer.FormInteractionProbability)
	assert.Nil(t, skimmer.Goal)
}

func TestLoadPersonasFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPersonasFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading personas file")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writePersonasFile(t, "personas: [")
		_, err := LoadPersonasFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing personas file")
	})

	t.Run("no personas defined", func(t *testing.T) {
		path := writePersonasFile(t, "personas: []")
		_, err := LoadPersonasFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "defines no personas")
	})
}

func TestLoadProxyFile(t *testing.T) {
	t.Run("skips blanks and comments", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "proxies.txt")
		content := "http://proxy-a:8080\n\n# staging pool\n  http://proxy-b:8080  \n   \n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		proxies := loadProxyFile(path, zap.NewNop())
		assert.Equal(t, []string{"http://proxy-a:8080", "http://proxy-b:8080"}, proxies)
	})

	t.Run("missing file yields nothing", func(t *testing.T) {
		proxies := loadProxyFile(filepath.Join(t.TempDir(), "nope.txt"), zap.NewNop())
		assert.Nil(t, proxies)
	})
}
