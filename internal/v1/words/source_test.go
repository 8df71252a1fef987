package words

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStaticLoadsEmbeddedLists(t *testing.T) {
	s, err := NewStatic(1)
	require.NoError(t, err)

	langs := s.Languages()
	assert.Contains(t, langs, "english")
	assert.Contains(t, langs, "spanish")
}

func TestPickReturnsDistinctWords(t *testing.T) {
	s, err := NewStatic(42)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		picked := s.Pick("english", 3)
		require.Len(t, picked, 3)
		assert.NotEqual(t, picked[0], picked[1])
		assert.NotEqual(t, picked[1], picked[2])
		assert.NotEqual(t, picked[0], picked[2])
	}
}

func TestPickUnknownLanguageFallsBackToEnglish(t *testing.T) {
	s, err := NewStatic(7)
	require.NoError(t, err)

	picked := s.Pick("klingon", 3)
	require.Len(t, picked, 3)
}

func TestPickFromCustomList(t *testing.T) {
	s, err := NewStatic(7)
	require.NoError(t, err)

	list := []string{"alpha", "beta", "gamma", "delta"}
	picked := s.PickFrom(list, 3)
	require.Len(t, picked, 3)
	for _, w := range picked {
		assert.Contains(t, list, w)
	}

	short := s.PickFrom([]string{"one", "two"}, 3)
	assert.Len(t, short, 2)
}
