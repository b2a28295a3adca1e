// Package rarkey implements password verification and checksum recovery
// for RAR5 archives in the mode where member names are stored in the clear
// while payload data is encrypted. Both operations work from header
// material alone, without decompressing any payload.
package rarkey

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pwCheckSize = 8
	pwSumSize   = 4

	// CheckValueSize is the length of the password check value stored in
	// a RAR5 encryption header: 8 check bytes followed by a 4-byte
	// truncated SHA-256 of those check bytes.
	CheckValueSize = pwCheckSize + pwSumSize
)

// Result is the outcome of a password check.
type Result int

const (
	// Incorrect means the candidate does not match the check value. An
	// expected outcome, not an error.
	Incorrect Result = iota

	// Correct means the candidate matches.
	Correct

	// Unknown means the check value is malformed or uses an algorithm
	// this package does not understand, so nothing can be concluded.
	Unknown
)

// Params carries the key-derivation parameters read from an archive's
// encryption header.
type Params struct {
	Salt []byte

	// LogCount is the base-2 logarithm of the PBKDF2 iteration count.
	LogCount uint8
}

// derivedKeys caches PBKDF2 output, which dominates the cost of repeated
// checks against one archive. Cache hits depend only on argument
// repetition, never on whether a candidate is correct.
var derivedKeys, _ = lru.New[string, []byte](128)

func deriveKey(password, salt []byte, iterations int) []byte {
	key := make([]byte, 0, len(salt)+len(password)+9)
	key = append(key, salt...)
	key = binary.LittleEndian.AppendUint64(key, uint64(iterations))
	key = append(key, 0)
	key = append(key, password...)
	cacheKey := string(key)

	if derived, ok := derivedKeys.Get(cacheKey); ok {
		return derived
	}
	derived := pbkdf2.Key(password, salt, iterations, sha256.Size, sha256.New)
	derivedKeys.Add(cacheKey, derived)
	return derived
}

// VerifyPassword checks a candidate password against the check value from
// an encryption header. The final comparisons are constant-time; the
// derivation cost does not depend on the candidate's correctness.
func VerifyPassword(checkValue []byte, kdf Params, password []byte) Result {
	if len(checkValue) != CheckValueSize {
		return Unknown
	}
	hdrCheck := checkValue[:pwCheckSize]
	hdrSum := checkValue[pwCheckSize:]

	// The stored sum validates the check bytes themselves; a mismatch
	// means a different check algorithm, not a wrong password.
	sum := sha256.Sum256(hdrCheck)
	if subtle.ConstantTimeCompare(sum[:pwSumSize], hdrSum) != 1 {
		return Unknown
	}

	iterations := (1 << kdf.LogCount) + 32
	derived := deriveKey(password, kdf.Salt, iterations)

	var check [pwCheckSize]byte
	for i, b := range derived {
		check[i&(pwCheckSize-1)] ^= b
	}

	if subtle.ConstantTimeCompare(check[:], hdrCheck) != 1 {
		return Incorrect
	}
	return Correct
}

// CheckValue computes the stored check value for a password, the inverse
// direction of VerifyPassword. Archivers write this into the encryption
// header; it is also what test fixtures are built from.
func CheckValue(kdf Params, password []byte) []byte {
	iterations := (1 << kdf.LogCount) + 32
	derived := deriveKey(password, kdf.Salt, iterations)

	out := make([]byte, CheckValueSize)
	for i, b := range derived {
		out[i&(pwCheckSize-1)] ^= b
	}
	sum := sha256.Sum256(out[:pwCheckSize])
	copy(out[pwCheckSize:], sum[:pwSumSize])
	return out
}

// HashKey derives the archive-level key material used for checksum
// transforms. The iteration count differs from the password check's by
// design of the format.
func HashKey(password []byte, kdf Params) []byte {
	return deriveKey(password, kdf.Salt, (1<<kdf.LogCount)+16)
}

// ChecksumMAC converts a freshly computed CRC32 into the keyed form stored
// for encrypted members: HMAC-SHA256 of the little-endian CRC under the
// hash key, folded to 32 bits by XOR of its little-endian words. Comparing
// the result against the stored checksum verifies payload integrity
// without exposing the plain CRC.
func ChecksumMAC(hashKey []byte, crc uint32) uint32 {
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], crc)
	return foldMAC(hashKey, raw[:])
}

// DecryptStoredCRC recovers the true CRC32 from the masked value stored in
// a member header. The mask depends on the archive hash key and the
// member's context bytes (its encryption record), so the transform is an
// XOR and therefore involutive: applying it twice with the same inputs
// returns the original value.
func DecryptStoredCRC(stored uint32, hashKey, context []byte) uint32 {
	return stored ^ foldMAC(hashKey, context)
}

// foldMAC computes HMAC-SHA256(key, data) and folds the 32-byte digest
// into 32 bits by XORing its eight little-endian words.
func foldMAC(key, data []byte) uint32 {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	digest := mac.Sum(nil)

	var out uint32
	for i := 0; i+4 <= len(digest); i += 4 {
		out ^= binary.LittleEndian.Uint32(digest[i:])
	}
	return out
}
