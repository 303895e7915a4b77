package severity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/medspa-portal/internal/model"
)

func testMappings() []model.SeverityMapping {
	return []model.SeverityMapping{
		{ID: "rec1", Finding: "Forehead Wrinkles", ScalingFactor: 0.5, ScalingType: "linear"},
		{ID: "rec2", Finding: "Volume Loss", ScalingFactor: 1, ScalingType: "logarithmic"},
		{ID: "rec3", Finding: "Redness", ScalingFactor: 0, ScalingType: "bogus"},
	}
}

func TestMapper_Lookup(t *testing.T) {
	t.Parallel()

	m := NewMapper(DefaultConfig(), 1, testMappings())

	mp, ok := m.Lookup("  forehead   WRINKLES ")
	require.True(t, ok)
	assert.Equal(t, "rec1", mp.ID)

	_, ok = m.Lookup("Crow's Feet")
	assert.False(t, ok)
}

func TestMapper_Apply(t *testing.T) {
	t.Parallel()

	m := NewMapper(DefaultConfig(), 1, testMappings())

	f := m.Apply(model.Finding{Name: "forehead wrinkles", Score: 100})
	assert.InDelta(t, 77.5, f.DisplayScore, 1e-9)
	assert.Equal(t, LevelSignificant, f.Level)

	f = m.Apply(model.Finding{Name: "Volume Loss", Score: 50})
	assert.InDelta(t, 60+35*math.Log10(5.5), f.DisplayScore, 1e-9)

	// Unusable factor and type fall back to the defaults.
	f = m.Apply(model.Finding{Name: "Redness", Score: 50})
	assert.InDelta(t, 77.5, f.DisplayScore, 1e-9)

	f = m.Apply(model.Finding{Name: "Crow's Feet", Score: 0, Level: "Mild"})
	assert.InDelta(t, 60.0, f.DisplayScore, 1e-9)
	assert.Equal(t, "Mild", f.Level)
}

func TestMapper_DefaultFactor(t *testing.T) {
	t.Parallel()

	m := NewMapper(DefaultConfig(), 0.5, nil)
	assert.InDelta(t, 77.5, m.Apply(model.Finding{Name: "x", Score: 100}).DisplayScore, 1e-9)

	m = NewMapper(DefaultConfig(), -2, nil)
	assert.InDelta(t, 95.0, m.Apply(model.Finding{Name: "x", Score: 100}).DisplayScore, 1e-9)
}

func TestMapper_ApplyAllSorts(t *testing.T) {
	t.Parallel()

	m := NewMapper(DefaultConfig(), 1, testMappings())
	in := []model.Finding{
		{Name: "Forehead Wrinkles", Score: 100},
		{Name: "Crow's Feet", Score: 80},
		{Name: "Pores", Score: 40},
		{Name: "Texture", Score: 40},
	}

	out := m.ApplyAll(in)
	require.Len(t, out, 4)
	assert.Equal(t, "Crow's Feet", out[0].Name)
	assert.InDelta(t, 88.0, out[0].DisplayScore, 1e-9)
	assert.Equal(t, LevelSevere, out[0].Level)
	assert.Equal(t, "Forehead Wrinkles", out[1].Name)
	assert.Equal(t, "Pores", out[2].Name)
	assert.Equal(t, "Texture", out[3].Name)

	// Input is not modified.
	assert.Zero(t, in[0].DisplayScore)
}
