package devcrypto

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	key := h32("test", []byte("key"))
	pt := bytes.Repeat([]byte{0xAB}, 100)

	ct := seal("ZcDevTest_______", key, pt)
	assert.Len(t, ct, len(pt)+tagSize)
	assert.NotEqual(t, pt, ct[:len(pt)])

	got, err := open("ZcDevTest_______", key, ct)
	require.NoError(t, err)
	assert.Equal(t, pt, got)

	other := h32("test", []byte("other"))
	_, err = open("ZcDevTest_______", other, ct)
	assert.Error(t, err)
}

func TestCommitmentsAreAdditive(t *testing.T) {
	r := SeededReader([32]byte{1})
	rcv1, err := randomScalar(r)
	require.NoError(t, err)
	rcv2, err := randomScalar(r)
	require.NoError(t, err)

	spend := commit(700, rcv1)
	output := commit(200, rcv2)

	// bvk = cv_spend - cv_output - 500*V = (rcv1 - rcv2)*R
	bvk := bindingKeyFromCommitments([][32]byte{spend}, [][32]byte{output}, 500)
	bsk := fromInt(toInt(rcv1).Sub(toInt(rcv1), toInt(rcv2)))
	assert.Equal(t, bindingKeyFor(bsk), bvk)

	wrong := bindingKeyFromCommitments([][32]byte{spend}, [][32]byte{output}, 499)
	assert.NotEqual(t, bindingKeyFor(bsk), wrong)
}

func TestNegativeCommitment(t *testing.T) {
	var zero [32]byte
	assert.Equal(t, fromInt(toInt(commit(5, zero)).Neg(toInt(commit(5, zero)))), commit(-5, zero))
}

func TestSeededReaderIsDeterministic(t *testing.T) {
	a := make([]byte, 64)
	b := make([]byte, 64)
	_, err := io.ReadFull(SeededReader([32]byte{9}), a)
	require.NoError(t, err)
	_, err = io.ReadFull(SeededReader([32]byte{9}), b)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = io.ReadFull(SeededReader([32]byte{10}), b)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestExpandLength(t *testing.T) {
	for _, n := range []int{0, 1, 64, 65, 601} {
		assert.Len(t, expand("ZcDevTest_______", n, []byte("x")), n)
	}
	assert.Equal(t, 2720+2272*2, OrchardProofSize(2))
}
