package narrative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_KeepsKeyOrder(t *testing.T) {
	v, err := decode([]byte(`{"b":1,"a":{"d":true,"c":null},"b":2}`))
	require.NoError(t, err)
	obj, ok := v.(*object)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, obj.keys)
	assert.Equal(t, 2.0, obj.vals["b"])
	assert.Equal(t, `{"b":2,"a":{"d":true,"c":null}}`, display(obj))
}

func TestDecode_RejectsTrailingData(t *testing.T) {
	_, err := decode([]byte(`{"a":1} {"b":2}`))
	require.Error(t, err)
}

func TestEqual(t *testing.T) {
	mustDecode := func(s string) any {
		v, err := decode([]byte(s))
		require.NoError(t, err)
		return v
	}
	assert.True(t, equal(mustDecode(`{"a":[1,{"b":2}]}`), mustDecode(`{"a":[1.0,{"b":2e0}]}`)))
	assert.False(t, equal(mustDecode(`[1,2]`), mustDecode(`[2,1]`)))
	assert.False(t, equal(mustDecode(`{"a":1}`), mustDecode(`{"a":1,"b":null}`)))
	assert.False(t, equal(mustDecode(`"1"`), mustDecode(`1`)))
	assert.True(t, equal(nil, mustDecode(`null`)))
}

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{
		0:        "0",
		1500:     "1500",
		-2.5:     "-2.5",
		1e20:     "100000000000000000000",
		1e21:     "1e+21",
		1.5e-7:   "1.5e-7",
		-1.5e-7:  "-1.5e-7",
		0.000001: "0.000001",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatNumber(in), "%v", in)
	}
}

func TestDisplay_StringsAreNotEscaped(t *testing.T) {
	assert.Equal(t, `"say "hi""`, display(`say "hi"`))
	assert.Equal(t, `["say \"hi\""]`, display([]any{`say "hi"`}))
}
