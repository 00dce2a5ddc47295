package models

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/gowebpki/jcs"
	"golang.org/x/crypto/blake2b"
)

// MaxSafeInt is the largest integer canonical JSON represents exactly.
// Canonicalization turns every number into an IEEE double.
const MaxSafeInt = 1<<53 - 1

var errUnsafeNumber = errors.New("number outside the exact double range")

// HashOf digests the RFC 8785 canonical JSON of v with BLAKE2b-256.
// The result depends only on v's own serialized content. Values holding a
// number canonicalization would round are rejected.
func HashOf(v any) (ContentHash, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return ContentHash{}, fmt.Errorf("hash: marshal: %w", err)
	}
	if err := checkNumbers(raw); err != nil {
		return ContentHash{}, fmt.Errorf("hash: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return ContentHash{}, fmt.Errorf("hash: canonicalize: %w", err)
	}
	return ContentHash(blake2b.Sum256(canon)), nil
}

// SafeInt reports whether n survives canonicalization unchanged.
func SafeInt(n int64) bool { return n >= -MaxSafeInt && n <= MaxSafeInt }

func checkNumbers(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		num, ok := tok.(json.Number)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(string(num), 10, 64)
		if err != nil {
			// fractions and exponents are not produced by our types
			continue
		}
		if !SafeInt(n) {
			return fmt.Errorf("%s: %w", num, errUnsafeNumber)
		}
	}
}

// HashBytes is the hex digest used for FileMetadata.FileHash.
func HashBytes(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}
