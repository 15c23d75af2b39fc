package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := ParseKey(strings.Repeat("ab", 32))
	require.NoError(t, err)
	return key
}

func TestParseKey(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		key, err := ParseKey(strings.Repeat("0", 64))
		require.NoError(t, err)
		assert.Len(t, key, 32)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := ParseKey("abcd")
		assert.Error(t, err)
	})

	t.Run("non-hex", func(t *testing.T) {
		_, err := ParseKey(strings.Repeat("zz", 32))
		assert.Error(t, err)
	})
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey(t)

	sealed, err := Encrypt("sessdata-secret-value", key)
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(sealed, ":")))

	plain, err := Decrypt(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, "sessdata-secret-value", plain)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	key := testKey(t)

	sealed, err := Encrypt("secret", key)
	require.NoError(t, err)

	parts := strings.Split(sealed, ":")
	flipped := "00" + parts[2][2:]
	if parts[2][:2] == "00" {
		flipped = "ff" + parts[2][2:]
	}
	tampered := strings.Join([]string{parts[0], parts[1], flipped}, ":")

	_, err = Decrypt(tampered, key)
	assert.Error(t, err)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	key := testKey(t)
	other, err := ParseKey(strings.Repeat("cd", 32))
	require.NoError(t, err)

	sealed, err := Encrypt("secret", key)
	require.NoError(t, err)

	_, err = Decrypt(sealed, other)
	assert.Error(t, err)
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	key := testKey(t)

	for _, input := range []string{"", "abc", "aa:bb", "xx:yy:zz"} {
		_, err := Decrypt(input, key)
		assert.Error(t, err, "input %q", input)
	}
}

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, key, 64)

	parsed, err := ParseKey(key)
	require.NoError(t, err)
	assert.Len(t, parsed, 32)
}
