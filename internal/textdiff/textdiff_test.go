package textdiff

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiffIdentical(t *testing.T) {
	d := Diff("a\nb\nc\n", "a\nb\nc\n")
	require.True(t, d.Empty())
}

func TestDiffAndApplyRoundTrip(t *testing.T) {
	from := "one\ntwo\nthree\nfour\nfive\n"
	to := "one\nTWO\nthree\nfour\nFIVE\n"

	d := Diff(from, to)
	require.False(t, d.Empty())

	got, err := Apply(from, d)
	require.NoError(t, err)
	require.Equal(t, to, got)
}

func TestParseStringRoundTrip(t *testing.T) {
	from := "alpha\nbeta\ngamma\ndelta\n"
	to := "alpha\nBETA\ngamma\ndelta\n"

	d := Diff(from, to)
	text := d.String()

	parsed, err := Parse(text)
	require.NoError(t, err)

	got, err := Apply(from, parsed)
	require.NoError(t, err)
	require.Equal(t, to, got)
}

func TestApplyInsertOnly(t *testing.T) {
	from := "a\nb\n"
	to := "a\nx\nb\n"
	d := Diff(from, to)
	got, err := Apply(from, d)
	require.NoError(t, err)
	require.Equal(t, to, got)
}

func TestApplyDeleteOnly(t *testing.T) {
	from := "a\nb\nc\n"
	to := "a\nc\n"
	d := Diff(from, to)
	got, err := Apply(from, d)
	require.NoError(t, err)
	require.Equal(t, to, got)
}

func TestApplyNoTrailingNewline(t *testing.T) {
	from := "a\nb"
	to := "a\nB"
	d := Diff(from, to)
	got, err := Apply(from, d)
	require.NoError(t, err)
	require.Equal(t, to, got)
}

func TestApplyConflictOnMismatchedBase(t *testing.T) {
	from := "a\nb\nc\n"
	to := "a\nB\nc\n"
	d := Diff(from, to)

	_, err := Apply("a\nDIFFERENT\nc\n", d)
	require.Error(t, err)
}

func TestApplyEmptyPatchIsIdentity(t *testing.T) {
	from := "unchanged\ntext\n"
	d := Diff(from, from)
	got, err := Apply(from, d)
	require.NoError(t, err)
	require.Equal(t, from, got)
}
