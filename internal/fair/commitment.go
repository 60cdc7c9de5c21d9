package fair

import (
	"crypto/hmac"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Digest is the uppercase hex HMAC-SHA3-256 of a committed value.
type Digest string

// Commit binds value to key. The MAC message is the decimal form of value
// and the MAC key is the hex text of the secret, so third-party tools given
// the revealed KEY line reproduce the digest byte for byte.
func Commit(key Secret, value int) (Digest, error) {
	if len(key) < SecretSize {
		return "", fmt.Errorf("%w: %d bytes, need %d", ErrInvalidKeyMaterial, len(key), SecretSize)
	}
	return Digest(strings.ToUpper(hex.EncodeToString(mac(key, value)))), nil
}

// Verify recomputes the digest for key and value and compares it with d in
// constant time. Case is ignored.
func Verify(d Digest, key Secret, value int) bool {
	if len(key) < SecretSize {
		return false
	}
	want, err := hex.DecodeString(string(d))
	if err != nil {
		return false
	}
	return hmac.Equal(want, mac(key, value))
}

func mac(key Secret, value int) []byte {
	h := hmac.New(sha3.New256, []byte(key.Hex()))
	h.Write([]byte(strconv.Itoa(value)))
	return h.Sum(nil)
}
