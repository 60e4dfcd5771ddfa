package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_NilIsEmptyList(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestDecode_EmptyInputs(t *testing.T) {
	for _, in := range []string{"", "null", "[]"} {
		items, err := Decode([]byte(in))
		require.NoError(t, err, in)
		assert.NotNil(t, items, in)
		assert.Empty(t, items, in)
	}
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte("{"))
	assert.Error(t, err)
}
