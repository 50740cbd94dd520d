package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func TestUnmarshalStrict(t *testing.T) {
	var s sample
	require.NoError(t, UnmarshalStrict([]byte(`{"name":"vega","n":2}`), &s))
	assert.Equal(t, sample{Name: "vega", N: 2}, s)

	assert.Error(t, UnmarshalStrict([]byte(`{"name":"vega","extra":1}`), &s))
	assert.Error(t, UnmarshalStrict([]byte(`{"name":"vega"} {"name":"x"}`), &s))
	assert.Error(t, UnmarshalStrict([]byte(`{"name":`), &s))
}

func TestMarshalKeepsFieldOrder(t *testing.T) {
	out, err := Marshal(sample{Name: "a", N: 1})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"a","n":1}`, string(out))
}
