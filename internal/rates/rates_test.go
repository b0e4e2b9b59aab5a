package rates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Rate(t *testing.T) {
	table, err := New(map[string]decimal.Decimal{"fl": decimal.RequireFromString("0.395")})
	require.NoError(t, err)

	rate, err := table.Rate(" FL")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.395")))

	_, err = table.Rate("GA")
	assert.ErrorIs(t, err, ErrUnknownJurisdiction)
	assert.False(t, table.Has("GA"))
	assert.True(t, table.Has("fl"))
}

func TestNew_RejectsNegativeRate(t *testing.T) {
	_, err := New(map[string]decimal.Decimal{"TX": decimal.NewFromFloat(-0.2)})
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestDefault(t *testing.T) {
	table := Default()
	assert.True(t, table.Has("FL"))
	assert.True(t, table.Has("TX"))
	codes := table.Jurisdictions()
	assert.Equal(t, "AL", codes[0])
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rates:\n  FL: \"0.40\"\n  ga: \"0.37\"\n"), 0o600))

	table, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"FL", "GA"}, table.Jurisdictions())

	rate, err := table.Rate("GA")
	require.NoError(t, err)
	assert.Equal(t, "0.37", rate.String())
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rates:\n  FL: \"abc\"\n"), 0o600))
	_, err = LoadFile(bad)
	assert.ErrorIs(t, err, ErrInvalidRate)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("rates: {}\n"), 0o600))
	_, err = LoadFile(empty)
	assert.Error(t, err)
}
