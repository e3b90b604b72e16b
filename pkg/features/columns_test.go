package features

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeColumnName(t *testing.T) {
	cases := map[string]string{
		"Farm ID":            "farm_id",
		"  Soil pH ":         "soil_ph",
		"Avg. Temp (°C)":     "avg_temp_c",
		"__Yield__KG__":      "yield_kg",
		"pre-grade/fine":     "pre_grade_fine",
		"already_normalized": "already_normalized",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeColumnName(in), in)
	}
}

func TestResolveColumnsPicksFirstAlias(t *testing.T) {
	cols := []string{"rainfall", "avg_rainfall_mm", "humidity"}
	fields := []Field{
		{Key: "avg_rainfall_mm", Aliases: []string{"avg_rainfall_mm", "rainfall", "rainfall_mm"}},
		{Key: "avg_humidity_pct", Aliases: []string{"avg_humidity_pct", "humidity", "humidity_pct"}},
	}
	resolved, err := ResolveColumns(cols, fields, "feature", true)
	require.NoError(t, err)
	assert.Equal(t, "avg_rainfall_mm", resolved["avg_rainfall_mm"])
	assert.Equal(t, "humidity", resolved["avg_humidity_pct"])
}

func TestResolveColumnsStrictListsMissing(t *testing.T) {
	_, err := ResolveColumns([]string{"current_yield"}, Extended.Targets, "target", true)
	require.Error(t, err)

	var missing *MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"fine_grade_pct", "premium_grade_pct", "commercial_grade_pct"}, missing.Missing)

	resolved, err := ResolveColumns([]string{"current_yield"}, Extended.Targets, "target", false)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"yield_kg": "current_yield"}, resolved)
}

func TestRegistryLookup(t *testing.T) {
	s, err := Lookup(" Extended ")
	require.NoError(t, err)
	assert.Equal(t, 39, s.Len())

	s, err = Lookup("simple")
	require.NoError(t, err)
	assert.Equal(t, 18, s.Len())
	assert.Equal(t, "plant_age_months", s.Keys()[0])
	assert.Equal(t, []string{"shade_tree_present"}, s.KeysOfKind(KindBoolean))

	_, err = Lookup("v3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extended, simple")
}

func TestExtendedIdentifiersAndTargets(t *testing.T) {
	assert.Equal(t, []string{"farm_id", "cluster_id"}, Extended.KeysOfKind(KindIdentifier))
	assert.Equal(t, []string{"yield_kg", "fine_grade_pct", "premium_grade_pct", "commercial_grade_pct"}, Extended.TargetKeys())
	f, ok := Extended.Field("soil_ph")
	require.True(t, ok)
	assert.Equal(t, "soil_ph", f.Aliases[0])
}
