package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuggest(t *testing.T) {
	vocab := []string{"k", "m", "b", "million", "billion", "thousand"}

	tests := []struct {
		name     string
		input    string
		limit    int
		expected []string
	}{
		{"exact match first", "m", 3, []string{"m", "b", "k"}},
		{"typo in word", "milion", 0, []string{"million", "billion"}},
		{"transposed letters", "thuosand", 0, []string{"thousand"}},
		{"nothing close", "zzzzzzzz", 0, []string{}},
		{"limit applies", "x", 2, []string{"b", "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Suggest(tt.input, vocab, 2, tt.limit))
		})
	}
}

func TestBoundedDistance(t *testing.T) {
	d, ok := boundedDistance("kitten", "sitting", 3)
	assert.True(t, ok)
	assert.Equal(t, 3, d)

	_, ok = boundedDistance("kitten", "sitting", 2)
	assert.False(t, ok)

	_, ok = boundedDistance("a", "abcd", 2)
	assert.False(t, ok)
}
