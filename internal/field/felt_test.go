package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNew_ReducesModulus(t *testing.T) {
	assert.Equal(t, uint64(0), New(Modulus).Uint64())
	assert.Equal(t, uint64(1), New(Modulus+1).Uint64())
	assert.Equal(t, Modulus-1, New(Modulus-1).Uint64())
	assert.Equal(t, Zero(), New(Modulus))
}

func TestZeroValueIsZero(t *testing.T) {
	var f Felt
	assert.True(t, f.IsZero())
	assert.Equal(t, Zero(), f)
	assert.Equal(t, "0", f.String())
}

func TestArithmetic(t *testing.T) {
	assert.Equal(t, New(12), New(5).Add(New(7)))
	assert.Equal(t, New(Modulus-2), New(5).Sub(New(7)))
	assert.Equal(t, New(35), New(5).Mul(New(7)))
	assert.Equal(t, New(Modulus-5), New(5).Neg())
	assert.Equal(t, New(3), New(21).Div(New(7)))
}

func TestInv_RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := rapid.Uint64Range(1, Modulus-1).Draw(rt, "v")
		f := New(v)
		assert.True(rt, f.Mul(f.Inv()).IsOne())
	})
}

func TestAddSub_Inverse(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := New(rapid.Uint64().Draw(rt, "a"))
		b := New(rapid.Uint64().Draw(rt, "b"))
		assert.Equal(rt, a, a.Add(b).Sub(b))
	})
}

func TestLessAndU32(t *testing.T) {
	assert.True(t, New(3).Less(New(4)))
	assert.False(t, New(4).Less(New(4)))
	assert.True(t, New(1<<32-1).IsU32())
	assert.False(t, New(1<<32).IsU32())
}

func TestPow2(t *testing.T) {
	f, err := Pow2(10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1024), f.Uint64())

	_, err = Pow2(64)
	require.Error(t, err)
}

func TestWordHelpers(t *testing.T) {
	w := NewWord(1, 2)
	assert.Equal(t, []uint64{1, 2, 0, 0}, w.Uint64s())
	assert.False(t, w.IsZero())
	assert.True(t, Word{}.IsZero())
}

func TestBytes_LittleEndian(t *testing.T) {
	assert.Equal(t, []byte{1, 2, 0, 0, 0, 0, 0, 0}, New(0x0201).Bytes())
}

func TestSliceRoundTrip(t *testing.T) {
	values := []uint64{0, 1, Modulus - 1}
	assert.Equal(t, values, Uint64s(Slice(values)))
}
