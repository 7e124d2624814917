package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLimit(t *testing.T) {
	assert.Equal(t, 50, ParseLimit("", 50, 200))
	assert.Equal(t, 50, ParseLimit("abc", 50, 200))
	assert.Equal(t, 50, ParseLimit("-3", 50, 200))
	assert.Equal(t, 10, ParseLimit("10", 50, 200))
	assert.Equal(t, 200, ParseLimit("9999", 50, 200))
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	offset, err := Decode(Encode(42))
	require.NoError(t, err)
	assert.Equal(t, 42, offset)
}

func TestDecode_Empty(t *testing.T) {
	offset, err := Decode("")
	assert.NoError(t, err)
	assert.Zero(t, offset)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode("not-base64!!!")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cursor")

	// Valid base64 but no | separator
	_, err = Decode("bm9waXBl") // "nopipe"
	assert.Error(t, err)
}

func TestPage_WalksLog(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	page, next, more, err := Page(items, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, page)
	assert.True(t, more)

	page, next, more, err = Page(items, next, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, page)
	assert.True(t, more)

	page, next, more, err = Page(items, next, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"e"}, page)
	assert.False(t, more)
	assert.Empty(t, next)
}

func TestPage_PastEnd(t *testing.T) {
	page, next, more, err := Page([]int{1, 2}, Encode(10), 5)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Empty(t, next)
	assert.False(t, more)
}
