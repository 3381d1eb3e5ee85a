package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingOracle struct {
	ids   map[string]int64
	calls int
}

func (o *countingOracle) LookupID(_ context.Context, ref string) (int64, error) {
	o.calls++
	if id, ok := o.ids[ref]; ok {
		return id, nil
	}
	return 0, errors.New("unknown reference")
}

func TestResolveMemoizesOracleAnswer(t *testing.T) {
	oracle := &countingOracle{ids: map[string]int64{"/alice.w": 9001}}
	c := NewCache(oracle, 0)

	id, err := c.Resolve(context.Background(), "/alice.w")
	require.NoError(t, err)
	assert.Equal(t, int64(9001), id)

	id, err = c.Resolve(context.Background(), "/alice.w")
	require.NoError(t, err)
	assert.Equal(t, int64(9001), id)
	assert.Equal(t, 1, oracle.calls, "second lookup must come from the memo table")
}

func TestResolveStructuralIDBypassesOracle(t *testing.T) {
	oracle := &countingOracle{}
	c := NewCache(oracle, 0)

	id, err := c.Resolve(context.Background(), "/profile.php?id=1234")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), id)

	id, err = c.Resolve(context.Background(), "https://m.facebook.com/5678")
	require.NoError(t, err)
	assert.Equal(t, int64(5678), id)

	assert.Zero(t, oracle.calls)
}

func TestResolveSelfReference(t *testing.T) {
	c := NewCache(&countingOracle{}, 42)

	id, err := c.Resolve(context.Background(), "/profile.php")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestResolveSelfReferenceWithoutSelfIDFallsToOracle(t *testing.T) {
	oracle := &countingOracle{}
	c := NewCache(oracle, 0)

	_, err := c.Resolve(context.Background(), "/profile.php")
	require.Error(t, err)
	assert.Equal(t, 1, oracle.calls)
}

func TestResolveOracleFailureNotMemoized(t *testing.T) {
	oracle := &countingOracle{}
	c := NewCache(oracle, 0)

	_, err := c.Resolve(context.Background(), "/ghost")
	require.Error(t, err)

	// A later structural answer for the same reference must still land.
	oracle.ids = map[string]int64{"/ghost": 7}
	id, err := c.Resolve(context.Background(), "/ghost")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, 2, oracle.calls)
}

func TestNormalizeUnifiesLinkForms(t *testing.T) {
	oracle := &countingOracle{ids: map[string]int64{"/bob.m": 55}}
	c := NewCache(oracle, 0)

	_, err := c.Resolve(context.Background(), "/bob.m")
	require.NoError(t, err)

	// Same profile through a fully qualified URL with tracking noise.
	id, ok := c.TryResolve("https://m.facebook.com/bob.m/?refid=52&__tn__=R")
	require.True(t, ok)
	assert.Equal(t, int64(55), id)
	assert.Equal(t, 1, oracle.calls)
}

func TestTryResolveNeverCallsOracle(t *testing.T) {
	oracle := &countingOracle{ids: map[string]int64{"/carol": 66}}
	c := NewCache(oracle, 0)

	_, ok := c.TryResolve("/carol")
	assert.False(t, ok)
	assert.Zero(t, oracle.calls)

	id, ok := c.TryResolve("/profile.php?id=99")
	require.True(t, ok)
	assert.Equal(t, int64(99), id)
}

func TestRememberAndHandleOf(t *testing.T) {
	c := NewCache(&countingOracle{}, 0)

	c.Remember("https://m.facebook.com/dave.x", 88)
	id, ok := c.TryResolve("/dave.x")
	require.True(t, ok)
	assert.Equal(t, int64(88), id)

	assert.Equal(t, "dave.x", c.HandleOf("/dave.x"))
	assert.Equal(t, "", c.HandleOf("/profile.php?id=88"))
	assert.Equal(t, "", c.HandleOf("/12345"))
}
