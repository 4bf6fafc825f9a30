package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "floodsar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
algorithm: 2D
hydro: gauge.csv
range: 2,6
cache_only: true
max_value: 0.5,0.1
store: sqlite
report: charts
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Algorithm2D, cfg.Algorithm)
	assert.Equal(t, "gauge.csv", cfg.Hydro)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "charts", cfg.Report)
	// untouched keys keep their defaults
	assert.Equal(t, 10, cfg.MaxIterations)
	assert.Equal(t, ".tif", cfg.Extension)
	require.NoError(t, cfg.Validate())

	ks, err := cfg.Classes()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4, 5, 6}, ks)
	vv, vh, err := cfg.MaxValues()
	require.NoError(t, err)
	assert.Equal(t, 0.5, vv)
	assert.Equal(t, 0.1, vh)
}

func TestLoad_UnknownKey(t *testing.T) {
	_, err := Load(writeFile(t, "algoritm: 2D\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.Hydro = "gauge.csv"
		c.Range = "0.01,0.1,0.01"
		c.AOI = "aoi.tif"
		c.EPSG = "EPSG:32630"
		return c
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "algorithm", modify: func(c *Config) { c.Algorithm = "3D" }},
		{name: "no hydro", modify: func(c *Config) { c.Hydro = "" }},
		{name: "no range", modify: func(c *Config) { c.Range = "" }},
		{name: "bad threshold range", modify: func(c *Config) { c.Range = "0.1" }},
		{name: "bad class range", modify: func(c *Config) { c.Algorithm = Algorithm2D; c.Range = "1,1" }},
		{name: "no aoi", modify: func(c *Config) { c.AOI = "" }},
		{name: "no epsg", modify: func(c *Config) { c.EPSG = "none" }},
		{name: "iterations", modify: func(c *Config) { c.MaxIterations = 0 }},
		{name: "fraction", modify: func(c *Config) { c.Fraction = 1.5 }},
		{name: "max value", modify: func(c *Config) { c.MaxValue = "0.1" }},
		{name: "store", modify: func(c *Config) { c.Store = "postgres" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}

	c := valid()
	c.CacheOnly = true
	c.AOI, c.EPSG = "", ""
	assert.NoError(t, c.Validate())
}

func TestMaxValues_Disabled(t *testing.T) {
	vv, vh, err := Default().MaxValues()
	require.NoError(t, err)
	assert.True(t, math.IsNaN(vv))
	assert.True(t, math.IsNaN(vh))
}
