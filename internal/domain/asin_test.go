package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeASIN(t *testing.T) {
	assert.Equal(t, "B08N5WRWNW", NormalizeASIN("  b08n5wrwnw "))
	assert.Equal(t, "B08N5WRWNW", NormalizeASIN("B08N5WRWNW"))
}

func TestValidASIN(t *testing.T) {
	assert.True(t, ValidASIN("B08N5WRWNW"))
	assert.True(t, ValidASIN("0123456789"))

	assert.False(t, ValidASIN("b08n5wrwnw"))  // lowercase, not normalized
	assert.False(t, ValidASIN("B08N5WRWN"))   // nine chars
	assert.False(t, ValidASIN("B08N5WRWNW1")) // eleven chars
	assert.False(t, ValidASIN("B08N5-RWNW"))  // punctuation
	assert.False(t, ValidASIN(""))
}

func TestNormalizeASINs(t *testing.T) {
	valid, dropped := NormalizeASINs([]string{
		" b08n5wrwnw",
		"B08N5WRWNW", // duplicate after normalization
		"bad",
		"0123456789",
		"",
	})

	assert.Equal(t, []string{"B08N5WRWNW", "0123456789"}, valid)
	assert.Equal(t, 2, dropped)
}

func TestNormalizeASINsEmpty(t *testing.T) {
	valid, dropped := NormalizeASINs(nil)
	assert.Empty(t, valid)
	assert.Zero(t, dropped)
}
