package fair

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialSecret() Secret {
	s := make(Secret, SecretSize)
	for i := range s {
		s[i] = byte(i)
	}
	return s
}

func TestCommitKnownAnswers(t *testing.T) {
	key := sequentialSecret()
	require.Equal(t, "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f", key.Hex())

	tests := []struct {
		value int
		want  Digest
	}{
		{0, "516C12EB9685B9C71203FBE7D154245DBBEB0D07E095716E8DD9247D907BF1E0"},
		{1, "43677AEF171349EA445B395E333C8E89C3BEB03D0822E01323B8DE9B3296C436"},
		{42, "ABB2CD14429F90CA6354F13888867C91B08079C71BE2917DAA4EEDA6FF5716C6"},
	}
	for _, tt := range tests {
		got, err := Commit(key, tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "value %d", tt.value)
		assert.True(t, Verify(got, key, tt.value))
		assert.True(t, Verify(Digest(strings.ToLower(string(got))), key, tt.value))
	}
}

func TestCommitDeterministicAndBinding(t *testing.T) {
	key, err := NewKeyGenerator(nil).Generate()
	require.NoError(t, err)

	for value := 0; value < 20; value++ {
		d1, err := Commit(key, value)
		require.NoError(t, err)
		d2, err := Commit(key, value)
		require.NoError(t, err)

		assert.Equal(t, d1, d2)
		assert.Len(t, string(d1), 64)
		assert.Equal(t, strings.ToUpper(string(d1)), string(d1))
		assert.False(t, Verify(d1, key, value+1), "digest for %d must not open to %d", value, value+1)
	}
}

func TestCommitRejectsShortKeys(t *testing.T) {
	for _, key := range []Secret{nil, {}, make(Secret, SecretSize-1)} {
		_, err := Commit(key, 1)
		assert.ErrorIs(t, err, ErrInvalidKeyMaterial)
		assert.False(t, Verify("00", key, 1))
	}
}

func TestVerifyRejectsGarbageDigest(t *testing.T) {
	assert.False(t, Verify("not-hex", sequentialSecret(), 0))
	assert.False(t, Verify("", sequentialSecret(), 0))
}

func TestKeyGenerator(t *testing.T) {
	gen := NewKeyGenerator(nil)
	a, err := gen.Generate()
	require.NoError(t, err)
	b, err := gen.Generate()
	require.NoError(t, err)

	assert.Len(t, a, SecretSize)
	assert.Len(t, a.Hex(), SecretSize*2)
	assert.NotEqual(t, a, b)

	_, err = NewKeyGenerator(iotest.ErrReader(errors.New("boom"))).Generate()
	assert.ErrorIs(t, err, ErrEntropyUnavailable)
}

func TestParseSecret(t *testing.T) {
	key := sequentialSecret()
	parsed, err := ParseSecret(key.Hex())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = ParseSecret("zz")
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)
	_, err = ParseSecret("0011")
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)
}

func TestSecretClone(t *testing.T) {
	key := sequentialSecret()
	c := key.Clone()
	c[0] = 0xff
	assert.Equal(t, byte(0), key[0])
	assert.Nil(t, Secret(nil).Clone())
}
