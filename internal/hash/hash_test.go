package hash

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOfIsDeterministic(t *testing.T) {
	a := Of([]byte("hello"))
	b := Of([]byte("hello"))
	require.Equal(t, a, b)
	require.NotEqual(t, Zero, a)
}

func TestNewRoundTrip(t *testing.T) {
	h := Of([]byte("tree content"))
	parsed := New(h.String())
	require.Equal(t, h, parsed)
	require.True(t, Valid(h.String()))
	require.False(t, Valid("not-a-hash"))
}

func TestJSONRoundTrip(t *testing.T) {
	h := Of([]byte("commit content"))
	b, err := json.Marshal(h)
	require.NoError(t, err)

	var out Hash
	require.NoError(t, json.Unmarshal(b, &out))
	require.Equal(t, h, out)
}

func TestSort(t *testing.T) {
	hs := []Hash{Of([]byte("c")), Of([]byte("a")), Of([]byte("b"))}
	Sort(hs)
	require.True(t, hs[0].String() < hs[1].String())
	require.True(t, hs[1].String() < hs[2].String())
}
