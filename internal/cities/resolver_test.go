package cities

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexJSON = `{
	"москва": 1,
	"мытищи": 12345,
	"санкт-петербург": 2,
	"нижний новгород": 95
}`

func TestResolveExact(t *testing.T) {
	r, err := Parse([]byte(indexJSON))
	require.NoError(t, err)

	city := r.Resolve("мытищи")
	require.NotNil(t, city)
	assert.Equal(t, 12345, city.ID)
	assert.Equal(t, "Мытищи", city.Name)
}

func TestResolveSubstringBothDirections(t *testing.T) {
	r, err := Parse([]byte(indexJSON))
	require.NoError(t, err)

	// Query inside name.
	city := r.Resolve("моск")
	require.NotNil(t, city)
	assert.Equal(t, 1, city.ID)

	// Name inside query.
	city = r.Resolve("москва москва-сити")
	require.NotNil(t, city)
	assert.Equal(t, 1, city.ID)
}

func TestResolveCaseAndWhitespace(t *testing.T) {
	r, err := Parse([]byte(indexJSON))
	require.NoError(t, err)

	city := r.Resolve("  МЫТИЩИ  ")
	require.NotNil(t, city)
	assert.Equal(t, 12345, city.ID)
}

func TestResolveFirstMatchInFileOrder(t *testing.T) {
	// Both "москва" and "мытищи" contain "м"; file order decides.
	r, err := Parse([]byte(indexJSON))
	require.NoError(t, err)

	city := r.Resolve("м")
	require.NotNil(t, city)
	assert.Equal(t, 1, city.ID, "first entry in file order must win")
}

func TestParseMixedCaseIndexKeys(t *testing.T) {
	r, err := Parse([]byte(`{"Москва": 1, "Санкт-Петербург": 2}`))
	require.NoError(t, err)

	city := r.Resolve("москва")
	require.NotNil(t, city)
	assert.Equal(t, 1, city.ID)
	assert.Equal(t, "Москва", city.Name)

	city = r.Resolve("САНКТ-ПЕТЕРБУРГ")
	require.NotNil(t, city)
	assert.Equal(t, 2, city.ID)
}

func TestResolveNoMatch(t *testing.T) {
	r, err := Parse([]byte(indexJSON))
	require.NoError(t, err)

	assert.Nil(t, r.Resolve("лондон"))
	assert.Nil(t, r.Resolve(""))
	assert.Nil(t, r.Resolve("   "))
}

func TestTitleCaseCompoundNames(t *testing.T) {
	r, err := Parse([]byte(indexJSON))
	require.NoError(t, err)

	city := r.Resolve("нижний новгород")
	require.NotNil(t, city)
	assert.Equal(t, "Нижний Новгород", city.Name)

	city = r.Resolve("санкт-петербург")
	require.NotNil(t, city)
	assert.Equal(t, "Санкт-Петербург", city.Name)
}

func TestLoadMissingFileYieldsEmptyResolver(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.True(t, r.Empty())
	assert.Nil(t, r.Resolve("москва"))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.json")
	require.NoError(t, os.WriteFile(path, []byte(indexJSON), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Len())
}

func TestParseRejectsMalformedIndex(t *testing.T) {
	_, err := Parse([]byte(`["москва"]`))
	assert.Error(t, err)
}
