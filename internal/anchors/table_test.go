package anchors

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("comma and whitespace rows, extra columns ignored", func(t *testing.T) {
		src := "0.1,0.2,1,1\n# comment\n\n0.3 0.4\n0.5\t0.6\t9\n"
		table, err := Load(strings.NewReader(src), 3)
		require.NoError(t, err)
		require.Equal(t, 3, table.Len())

		want := []Anchor{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}}
		for i, w := range want {
			got, err := table.Get(i)
			require.NoError(t, err)
			assert.Equal(t, w, got, "anchor %d", i)
		}
	})

	t.Run("rows past n are ignored", func(t *testing.T) {
		table, err := Load(strings.NewReader("1,1\n2,2\n3,3\n"), 2)
		require.NoError(t, err)
		assert.Equal(t, 2, table.Len())
	})

	t.Run("short table fails with ParseError", func(t *testing.T) {
		_, err := Load(strings.NewReader("0.1,0.2\nfoo,bar\n0.3\n"), 3)
		require.Error(t, err)

		var perr *ParseError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, 3, perr.Want)
		assert.Equal(t, 1, perr.Got)
		assert.Equal(t, 2, perr.Line)
	})

	t.Run("non-finite rows are rejected", func(t *testing.T) {
		_, err := Load(strings.NewReader("0.1,0.2\nNaN,NaN\n0.3,Inf\n"), 3)
		require.Error(t, err)

		var perr *ParseError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, 1, perr.Got)
		assert.Equal(t, 2, perr.Line)
		assert.Equal(t, "NaN,NaN", perr.Content)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := Load(strings.NewReader(""), PoseAnchorCount)
		var perr *ParseError
		assert.True(t, errors.As(err, &perr))
	})
}

func TestTable_Get(t *testing.T) {
	table := Generate(PoseDetectorOptions())

	for _, idx := range []int{-1, table.Len(), table.Len() + 100} {
		_, err := table.Get(idx)
		var ierr *IndexError
		if assert.True(t, errors.As(err, &ierr), "index %d", idx) {
			assert.Equal(t, idx, ierr.Index)
			assert.Equal(t, PoseAnchorCount, ierr.Len)
		}
	}
}

func TestGenerate_PoseDetector(t *testing.T) {
	table := Generate(PoseDetectorOptions())
	require.Equal(t, PoseAnchorCount, table.Len())

	first, _ := table.Get(0)
	assert.InDelta(t, 0.5/28, first.X, 1e-12)
	assert.InDelta(t, 0.5/28, first.Y, 1e-12)

	// two anchors per cell on the stride-8 map
	second, _ := table.Get(1)
	assert.Equal(t, first, second)

	// first anchor of the stride-16 map
	s16, _ := table.Get(28 * 28 * 2)
	assert.InDelta(t, 0.5/14, s16.X, 1e-12)

	last, _ := table.Get(PoseAnchorCount - 1)
	assert.InDelta(t, 6.5/7, last.X, 1e-12)
	assert.InDelta(t, 6.5/7, last.Y, 1e-12)
}

func TestTable_WriteToRoundTrip(t *testing.T) {
	table := Generate(PoseDetectorOptions())

	var buf bytes.Buffer
	_, err := table.WriteTo(&buf)
	require.NoError(t, err)

	loaded, err := Load(&buf, PoseAnchorCount)
	require.NoError(t, err)

	for i := 0; i < table.Len(); i++ {
		want, _ := table.Get(i)
		got, _ := loaded.Get(i)
		if want != got {
			t.Fatalf("anchor %d: got %v, want %v", i, got, want)
		}
	}
}
