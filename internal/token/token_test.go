package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFullToken(t *testing.T) {
	raw := "E:summer-fest|C:ch2|S:7|V:1|H:a1b2c3d4e5f60718|T:1756500000000|N:abc123|CRC:1A2B3C4D"

	tok, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "summer-fest", tok.EventID)
	assert.Equal(t, "ch2", tok.ChapterID)
	assert.Equal(t, "7", tok.SequenceID)
	assert.Equal(t, "1", tok.Version)
	assert.Equal(t, "a1b2c3d4e5f60718", tok.Signature)
	assert.Equal(t, int64(1756500000000), tok.Timestamp)
	assert.Equal(t, "abc123", tok.Nonce)
	assert.Equal(t, "1A2B3C4D", tok.Checksum)
}

func TestParseIgnoresUnknownFields(t *testing.T) {
	raw := "E:ev|C:c1|S:1|V:1|X:whatever|H:deadbeefdeadbeef"

	tok, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "ev", tok.EventID)
	assert.Equal(t, "deadbeefdeadbeef", tok.Signature)
}

func TestParseMissingCoreField(t *testing.T) {
	cases := map[string]string{
		"no chapter":   "E:ev|S:1|V:1|H:deadbeefdeadbeef",
		"no sequence":  "E:ev|C:c1|V:1|H:deadbeefdeadbeef",
		"no version":   "E:ev|C:c1|S:1|H:deadbeefdeadbeef",
		"no signature": "E:ev|C:c1|S:1|V:1",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(raw)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParseRejectsNonLeadingEventField(t *testing.T) {
	_, err := Parse("C:c1|E:ev|S:1|V:1|H:deadbeefdeadbeef")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseRejectsBadTimestamp(t *testing.T) {
	_, err := Parse("E:ev|C:c1|S:1|V:1|H:deadbeefdeadbeef|T:soon")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncodeRoundTrip(t *testing.T) {
	tok := &Token{
		EventID:    "ev",
		ChapterID:  "c1",
		SequenceID: "3",
		Version:    "2",
		Signature:  "deadbeefdeadbeef",
		Timestamp:  1756500000000,
		Nonce:      "n-42",
	}

	parsed, err := Parse(Encode(tok))
	require.NoError(t, err)
	assert.Equal(t, tok, parsed)
}

func TestSigningPayloadOrder(t *testing.T) {
	tok := &Token{
		EventID:    "ev",
		ChapterID:  "c1",
		SequenceID: "3",
		Version:    "1",
		Timestamp:  1700000000000,
		Nonce:      "n1",
	}
	assert.Equal(t, "E:ev|C:c1|S:3|V:1|T:1700000000000|N:n1", tok.SigningPayload())

	// Optional fields fall out of the payload when absent.
	tok.Timestamp = 0
	tok.Nonce = ""
	assert.Equal(t, "E:ev|C:c1|S:3|V:1", tok.SigningPayload())
}

// Tokens signed by other conformant issuers verify: the payload is
// the key-prefixed rendering, not the bare values.
func TestVerifySignatureInteroperates(t *testing.T) {
	secret := "shared-secret"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("E:evt1|C:ch2|S:3|V:1"))
	sig := hex.EncodeToString(mac.Sum(nil))[:SignatureLength]

	tok, err := Parse("E:evt1|C:ch2|S:3|V:1|H:" + sig)
	require.NoError(t, err)

	v := NewVerifier(secret)
	assert.NoError(t, v.VerifySignature(tok))
}

func TestSignAndVerify(t *testing.T) {
	v := NewVerifier("test-secret")
	tok := &Token{EventID: "ev", ChapterID: "c1", SequenceID: "1", Version: "1"}

	tok.Signature = v.Sign(tok)
	require.Len(t, tok.Signature, SignatureLength)
	assert.NoError(t, v.VerifySignature(tok))

	tok.Signature = strings.Repeat("0", SignatureLength)
	assert.ErrorIs(t, v.VerifySignature(tok), ErrSignatureMismatch)
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	issuer := NewVerifier("secret-a")
	tok := &Token{EventID: "ev", ChapterID: "c1", SequenceID: "1", Version: "1"}
	tok.Signature = issuer.Sign(tok)

	other := NewVerifier("secret-b")
	assert.ErrorIs(t, other.VerifySignature(tok), ErrSignatureMismatch)
}

func TestVerifySignatureTamperedPayload(t *testing.T) {
	v := NewVerifier("test-secret")
	tok := &Token{EventID: "ev", ChapterID: "c1", SequenceID: "1", Version: "1"}
	tok.Signature = v.Sign(tok)

	tok.SequenceID = "2"
	assert.ErrorIs(t, v.VerifySignature(tok), ErrSignatureMismatch)
}

func TestChecksumStableAgainstOwnTrailer(t *testing.T) {
	raw := "E:ev|C:c1|S:1|V:1|H:deadbeefdeadbeef"
	sum := Checksum(raw)
	require.Len(t, sum, ChecksumLength)

	// Recomputing over the token with the trailer attached yields the
	// same value because the trailer is stripped first.
	assert.Equal(t, sum, Checksum(raw+"|CRC:"+sum))
}

func TestVerifyChecksum(t *testing.T) {
	v := NewVerifier("test-secret")
	base := "E:ev|C:c1|S:1|V:1|H:deadbeefdeadbeef"
	raw := base + "|CRC:" + Checksum(base)

	tok, err := Parse(raw)
	require.NoError(t, err)
	assert.NoError(t, v.VerifyChecksum(raw, tok))

	// Case-insensitive comparison.
	lower := base + "|CRC:" + strings.ToLower(Checksum(base))
	tok, err = Parse(lower)
	require.NoError(t, err)
	assert.NoError(t, v.VerifyChecksum(lower, tok))
}

func TestVerifyChecksumDetectsCorruption(t *testing.T) {
	v := NewVerifier("test-secret")
	base := "E:ev|C:c1|S:1|V:1|H:deadbeefdeadbeef"
	sum := Checksum(base)

	corrupted := strings.Replace(base, "c1", "c2", 1) + "|CRC:" + sum
	tok, err := Parse(corrupted)
	require.NoError(t, err)
	assert.ErrorIs(t, v.VerifyChecksum(corrupted, tok), ErrChecksumMismatch)
}

func TestVerifyChecksumOptional(t *testing.T) {
	v := NewVerifier("test-secret")
	raw := "E:ev|C:c1|S:1|V:1|H:deadbeefdeadbeef"
	tok, err := Parse(raw)
	require.NoError(t, err)
	assert.NoError(t, v.VerifyChecksum(raw, tok))
}

func TestVerifyReportsSignatureBeforeChecksum(t *testing.T) {
	v := NewVerifier("test-secret")
	raw := "E:ev|C:c1|S:1|V:1|H:0000000000000000|CRC:00000000"
	tok, err := Parse(raw)
	require.NoError(t, err)
	assert.ErrorIs(t, v.Verify(raw, tok), ErrSignatureMismatch)
}

func TestIssueProducesVerifiableToken(t *testing.T) {
	v := NewVerifier("test-secret")
	tok := &Token{
		EventID:    "ev",
		ChapterID:  "c1",
		SequenceID: "1",
		Version:    "1",
		Timestamp:  1756500000000,
		Nonce:      "n1",
	}

	raw := v.Issue(tok, true)

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.NoError(t, v.Verify(raw, parsed))
	assert.NotEmpty(t, parsed.Checksum)
}
