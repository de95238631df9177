package reqmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/fedreq/internal/reqvalue"
)

type layoutMapper struct {
	layout Layout
	out    reqvalue.Value
}

func (m layoutMapper) Layout(Key) (Layout, bool) { return m.layout, true }

func (m layoutMapper) Map(Key, any) (reqvalue.Value, error) { return m.out, nil }

var testKey = Key{FetchNode: "Review.author", Slot: "representations"}

func TestKeyString(t *testing.T) {
	require.Equal(t, "Review.author.representations", testKey.String())
}

func TestChecked_PassesMatchingArity(t *testing.T) {
	m := Checked(layoutMapper{
		layout: Layout{Fields: []string{"id", "region"}},
		out:    reqvalue.MustParse(`{id: 1, region: EU}`),
	})
	v, err := m.Map(testKey, nil)
	require.NoError(t, err)
	require.Equal(t, 2, v.Len())
}

func TestChecked_RejectsArityMismatch(t *testing.T) {
	m := Checked(layoutMapper{
		layout: Layout{Fields: []string{"id", "region"}},
		out:    reqvalue.MustParse(`{id: 1, region: EU, extra: true}`),
	})
	_, err := m.Map(testKey, nil)
	require.ErrorIs(t, err, reqvalue.ErrInvalidValueShape)
	var se *reqvalue.InvalidShapeError
	require.True(t, errors.As(err, &se))
	require.Equal(t, 2, se.Expected)
	require.Equal(t, 3, se.Actual)
}

func TestChecked_NullIsNotAFault(t *testing.T) {
	m := Checked(layoutMapper{layout: Layout{Fields: []string{"id"}}, out: reqvalue.Null()})
	v, err := m.Map(testKey, nil)
	require.NoError(t, err)
	require.True(t, v.IsNull())
}

func TestChecked_Idempotent(t *testing.T) {
	m := Checked(layoutMapper{})
	require.Equal(t, m, Checked(m))
}

func TestMapperFunc_DeclaresNoLayout(t *testing.T) {
	calls := 0
	f := MapperFunc(func(k Key, obj any) (reqvalue.Value, error) {
		calls++
		require.Equal(t, testKey, k)
		return reqvalue.Int(int64(obj.(int))), nil
	})
	_, ok := f.Layout(testKey)
	require.False(t, ok)
	v, err := Checked(f).Map(testKey, 3)
	require.NoError(t, err)
	require.True(t, reqvalue.Equal(reqvalue.Int(3), v))
	require.Equal(t, 1, calls)
}
