package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"
)

var (
	ErrSignatureMismatch = errors.New("signature_mismatch")
	ErrChecksumMismatch  = errors.New("checksum_mismatch")
)

// Verifier checks the authenticity and integrity of decoded tokens.
// The signature is HMAC-SHA256 over the signing payload, truncated to
// SignatureLength hex characters; the checksum is CRC32 (IEEE) over
// the full token string minus its own trailer.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the truncated hex signature for t.
func (v *Verifier) Sign(t *Token) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(t.SigningPayload()))
	return hex.EncodeToString(mac.Sum(nil))[:SignatureLength]
}

// VerifySignature compares the token's signature field against the
// expected value in constant time.
func (v *Verifier) VerifySignature(t *Token) error {
	expected := v.Sign(t)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(t.Signature))) {
		return ErrSignatureMismatch
	}
	return nil
}

// Checksum computes the CRC32 trailer for a raw token string. Any
// existing trailer is stripped first so the value is stable whether or
// not the input already carries one.
func Checksum(raw string) string {
	stripped := StripChecksum(raw)
	sum := crc32.ChecksumIEEE([]byte(stripped))
	return strings.ToUpper(fmt.Sprintf("%08x", sum))
}

// StripChecksum removes a trailing |CRC:... field, if present.
func StripChecksum(raw string) string {
	idx := strings.LastIndex(raw, "|"+fieldChecksum+":")
	if idx < 0 {
		return raw
	}
	return raw[:idx]
}

// VerifyChecksum validates the CRC32 trailer of the raw token. Tokens
// without a trailer pass: the checksum is optional transport
// hardening, not an authenticity check. Comparison is
// case-insensitive.
func (v *Verifier) VerifyChecksum(raw string, t *Token) error {
	if t.Checksum == "" {
		return nil
	}
	if !strings.EqualFold(Checksum(raw), t.Checksum) {
		return ErrChecksumMismatch
	}
	return nil
}

// Verify runs the signature check then the checksum check. The
// signature decides authenticity, so it is evaluated first; a token
// failing both reports the signature failure.
func (v *Verifier) Verify(raw string, t *Token) error {
	if err := v.VerifySignature(t); err != nil {
		return err
	}
	return v.VerifyChecksum(raw, t)
}
