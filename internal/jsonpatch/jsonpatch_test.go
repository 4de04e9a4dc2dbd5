package jsonpatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/lineage/internal/dogmaerr"
)

func TestSafeReplaceAppliesWhenOldValueMatches(t *testing.T) {
	patch, err := Parse([]byte(`[{"op":"safeReplace","path":"/foo","oldValue":"bar","value":"baz"}]`))
	require.NoError(t, err)

	out, err := Apply([]byte(`{"foo":"bar"}`), patch)
	require.NoError(t, err)
	require.JSONEq(t, `{"foo":"baz"}`, string(out))
}

func TestSafeReplayFailsOnStaleOldValue(t *testing.T) {
	patch, err := Parse([]byte(`[{"op":"safeReplace","path":"/foo","oldValue":"bar","value":"baz"}]`))
	require.NoError(t, err)

	_, err = Apply([]byte(`{"foo":"baz"}`), patch)
	require.Error(t, err)
	require.True(t, dogmaerr.IsErrChangeConflict(err))
}

func TestApplyToAbsentTreatsAsNull(t *testing.T) {
	patch, err := Parse([]byte(`[{"op":"add","path":"/foo","value":"bar"}]`))
	require.NoError(t, err)

	out, err := Apply(nil, patch)
	require.NoError(t, err)
	require.JSONEq(t, `{"foo":"bar"}`, string(out))
}

func TestAddToArrayAppend(t *testing.T) {
	patch, err := Parse([]byte(`[{"op":"add","path":"/items/-","value":"c"}]`))
	require.NoError(t, err)

	out, err := Apply([]byte(`{"items":["a","b"]}`), patch)
	require.NoError(t, err)
	require.JSONEq(t, `{"items":["a","b","c"]}`, string(out))
}

func TestRemoveMissingFails(t *testing.T) {
	patch, err := Parse([]byte(`[{"op":"remove","path":"/missing"}]`))
	require.NoError(t, err)

	_, err = Apply([]byte(`{"foo":"bar"}`), patch)
	require.Error(t, err)
	require.True(t, dogmaerr.IsErrChangeConflict(err))
}

func TestRemoveNested(t *testing.T) {
	patch, err := Parse([]byte(`[{"op":"remove","path":"/a/b"}]`))
	require.NoError(t, err)

	out, err := Apply([]byte(`{"a":{"b":1,"c":2}}`), patch)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":{"c":2}}`, string(out))
}

func TestTestOpFailsOnMismatch(t *testing.T) {
	patch, err := Parse([]byte(`[{"op":"test","path":"/foo","value":"unexpected"}]`))
	require.NoError(t, err)

	_, err = Apply([]byte(`{"foo":"bar"}`), patch)
	require.Error(t, err)
}

func TestMoveRelocatesValue(t *testing.T) {
	patch, err := Parse([]byte(`[{"op":"move","from":"/a","path":"/b"}]`))
	require.NoError(t, err)

	out, err := Apply([]byte(`{"a":1}`), patch)
	require.NoError(t, err)
	require.JSONEq(t, `{"b":1}`, string(out))
}

func TestAddNestedCreatesPath(t *testing.T) {
	patch, err := Parse([]byte(`[{"op":"add","path":"/a/b/c","value":1}]`))
	require.NoError(t, err)

	out, err := Apply([]byte(`{"a":{}}`), patch)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":{"b":{"c":1}}}`, string(out))
}
