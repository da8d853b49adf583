package sensors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHwmonFixture(t *testing.T, base, chip string, inputs map[string]string) {
	t.Helper()
	dir := filepath.Join(base, chip)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "name"), []byte(chip), 0644))
	for name, content := range inputs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
}

func TestDiscoverFindsTempInputs(t *testing.T) {
	base := t.TempDir()
	writeHwmonFixture(t, base, "hwmon0", map[string]string{
		"temp1_input": "45000\n",
		"temp1_label": "Package",
	})

	r := NewWithBasePath(base)
	require.NoError(t, r.Discover())
	defer r.Close()

	all := r.All()
	require.Len(t, all, 1)
	assert.Equal(t, "hwmon0", all[0].ChipName)
	assert.Equal(t, "Package", all[0].Label)
}

func TestDiscoverIgnoresNonTempFiles(t *testing.T) {
	base := t.TempDir()
	writeHwmonFixture(t, base, "hwmon0", map[string]string{
		"temp1_input": "30000",
		"fan1_input":  "1200",
	})

	r := NewWithBasePath(base)
	require.NoError(t, r.Discover())
	defer r.Close()

	assert.Len(t, r.All(), 1)
}

func TestResolveByChipLabelOrPath(t *testing.T) {
	base := t.TempDir()
	writeHwmonFixture(t, base, "coretemp", map[string]string{
		"temp1_input": "50000",
		"temp1_label": "Core 0",
	})

	r := NewWithBasePath(base)
	require.NoError(t, r.Discover())
	defer r.Close()

	byChip, err := r.Resolve("coretemp")
	require.NoError(t, err)
	assert.Equal(t, "Core 0", byChip.Label)

	byLabel, err := r.Resolve("Core 0")
	require.NoError(t, err)
	assert.Same(t, byChip, byLabel)

	byPath, err := r.Resolve(filepath.Join(base, "coretemp", "temp1_input"))
	require.NoError(t, err)
	assert.Same(t, byChip, byPath)
}

func TestResolveUnknownNameErrors(t *testing.T) {
	r := NewWithBasePath(t.TempDir())
	require.NoError(t, r.Discover())
	_, err := r.Resolve("nonexistent")
	assert.Error(t, err)
}

func TestSensorReadConvertsMillidegrees(t *testing.T) {
	base := t.TempDir()
	writeHwmonFixture(t, base, "hwmon0", map[string]string{
		"temp1_input": "42500",
	})

	r := NewWithBasePath(base)
	require.NoError(t, r.Discover())
	defer r.Close()

	v, err := r.All()[0].Read()
	require.NoError(t, err)
	assert.Equal(t, 42.5, v)
}
