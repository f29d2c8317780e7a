package relay

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDStyle(t *testing.T) {
	style, err := ParseIDStyle("")
	require.NoError(t, err)
	assert.Equal(t, IDStyleUUID, style)

	style, err = ParseIDStyle("words")
	require.NoError(t, err)
	assert.Equal(t, IDStyleWords, style)

	_, err = ParseIDStyle("emoji")
	assert.ErrorIs(t, err, ErrInvalidIDStyle)
}

func TestIDStyle_Generator(t *testing.T) {
	_, err := uuid.Parse(IDStyleUUID.Generator()())
	assert.NoError(t, err)

	assert.True(t, IsWordID(IDStyleWords.Generator()()))
}

func TestNewWordID(t *testing.T) {
	for range 500 {
		id := NewWordID()
		require.True(t, IsWordID(id), "malformed id %q", id)

		parts := strings.Split(id, "-")
		assert.NotEqual(t, parts[0], parts[3], "adjective repeated in %q", id)
		assert.NotEqual(t, parts[1], parts[4], "noun repeated in %q", id)
		assert.NotContains(t, nonsense[parts[2]], parts[4], "nonsensical object in %q", id)
	}
}

func TestWordLists(t *testing.T) {
	for _, list := range [][]string{adjectives, nouns, verbs} {
		seen := make(map[string]bool)
		for _, w := range list {
			assert.NotContains(t, w, "-")
			assert.False(t, seen[w], "duplicate word %q", w)
			seen[w] = true
		}
	}

	for verb, objects := range nonsense {
		assert.Contains(t, verbs, verb)
		for _, noun := range objects {
			assert.Contains(t, nouns, noun)
		}
	}
}

func TestValidWords(t *testing.T) {
	assert.True(t, validWords("bold", "otter", "eat", "calm", "tulip"))
	assert.False(t, validWords("bold", "otter", "eat", "bold", "tulip"))
	assert.False(t, validWords("bold", "otter", "eat", "calm", "otter"))
	assert.False(t, validWords("bold", "otter", "eat", "calm", "rocks"))
	assert.False(t, validWords("bold", "otter", "swim", "calm", "fire"))
	assert.True(t, validWords("bold", "rocks", "eat", "calm", "tulip"))
}

func TestIsWordID(t *testing.T) {
	assert.True(t, IsWordID("brave-otter-chases-quiet-river"))
	assert.False(t, IsWordID(""))
	assert.False(t, IsWordID("brave-otter-chases-quiet"))
	assert.False(t, IsWordID("otter-brave-chases-quiet-river"))
	assert.False(t, IsWordID(uuid.New().String()))
}
