package compass

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prave/ModelCompass/hardware"
)

func TestCatalogBuiltin(t *testing.T) {
	c := NewCatalog()
	models := c.Models()
	require.NotEmpty(t, models)

	m, ok := c.Find("Qwen3-8B")
	require.True(t, ok)
	assert.Equal(t, 5.2, m.SizeGB)
	assert.True(t, m.Downloadable())

	// sharded releases carry no direct download target
	sharded, ok := c.Find("Qwen3-235B-A22B")
	require.True(t, ok)
	assert.False(t, sharded.Downloadable())

	_, ok = c.Find("No-Such-Model")
	assert.False(t, ok)
}

func TestLoadCatalogOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	override := `models:
  - name: Custom-7B
    params: 7B
    quant: Q4_K_M
    sizeGB: 4.4
    context: 32K
    score: 70
    category: General Purpose
    license: Apache 2.0
    summary: In-house fine-tune.
    repo: local/custom-7b
    file: custom-7b.Q4_K_M.gguf
`
	require.NoError(t, os.WriteFile(path, []byte(override), 0644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, c.Models(), 1)

	m, ok := c.Find("Custom-7B")
	require.True(t, ok)
	assert.Equal(t, 4.4, m.SizeGB)
	assert.Equal(t, "local/custom-7b", m.Repo)
}

func TestLoadCatalogMissingFileFallsBack(t *testing.T) {
	c, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, NewCatalog().Models(), c.Models())

	c, err = LoadCatalog("")
	require.NoError(t, err)
	assert.NotEmpty(t, c.Models())
}

func TestLoadCatalogRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models: {not: [a, list"), 0644))
	_, err := LoadCatalog(path)
	require.Error(t, err)
}

func TestRecommendSortsFitsFirstThenScore(t *testing.T) {
	p := hardware.Profile{
		GPUVendor:          hardware.VendorNvidia,
		GPUName:            "NVIDIA GeForce RTX 3060",
		VRAMGB:             12,
		RAMGB:              32,
		MemoryBandwidthGBs: 360,
	}

	c := NewCatalog()
	recs, err := c.Recommend(p)
	require.NoError(t, err)
	require.Len(t, recs, len(c.Models()))

	// 12 GB card: max model size is 12 * 0.82 = 9.84 GB
	sawNonFit := false
	lastScore := 101
	for _, r := range recs {
		if !r.Fits {
			sawNonFit = true
			continue
		}
		require.False(t, sawNonFit, "fitting model sorted after a non-fitting one")
		assert.LessOrEqual(t, r.Model.SizeGB, 9.84)
		assert.LessOrEqual(t, r.Model.Score, lastScore)
		lastScore = r.Model.Score
		assert.GreaterOrEqual(t, r.TokensPerSecond, 1)
		assert.NotEmpty(t, r.SpeedLabel)
		assert.Greater(t, r.VRAMNeededGB, r.Model.SizeGB)
	}
	require.True(t, sawNonFit, "a 12GB card should not fit the whole catalog")
}

func TestRecommendRejectsInvalidProfile(t *testing.T) {
	_, err := NewCatalog().Recommend(hardware.Profile{RAMGB: -1})
	require.Error(t, err)

	var verr *hardware.ValidationError
	assert.ErrorAs(t, err, &verr)
}
