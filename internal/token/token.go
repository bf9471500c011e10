package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Field keys of the proof-of-presence wire format.
const (
	fieldEvent     = "E"
	fieldChapter   = "C"
	fieldSequence  = "S"
	fieldVersion   = "V"
	fieldSignature = "H"
	fieldTimestamp = "T"
	fieldNonce     = "N"
	fieldChecksum  = "CRC"
)

// SignatureLength is the number of hex characters kept from the
// HMAC-SHA256 digest when signing a token.
const SignatureLength = 16

// ChecksumLength is the number of hex characters of the CRC32 trailer.
const ChecksumLength = 8

var (
	ErrMalformed = errors.New("malformed_token")
)

// Token is a decoded proof-of-presence token. EventID, ChapterID,
// SequenceID, Version and Signature are always present in a valid
// token; Timestamp, Nonce and Checksum are optional hardening fields.
type Token struct {
	EventID    string
	ChapterID  string
	SequenceID string
	Version    string
	Signature  string

	// Timestamp is unix milliseconds of token issuance, 0 when the
	// field was absent.
	Timestamp int64
	Nonce     string
	Checksum  string
}

// NodeKey identifies the scannable node the token points at,
// independent of issuance time and nonce.
func (t *Token) NodeKey() string {
	return t.EventID + ":" + t.ChapterID
}

// ReplayKey is the replay-cache key for this token instance.
func (t *Token) ReplayKey() string {
	return strings.Join([]string{t.EventID, t.ChapterID, t.SequenceID, t.Nonce}, ":")
}

// Parse decodes a raw token string. Unknown fields are ignored so that
// newer token issuers stay readable; the five core fields must all be
// present and the token must lead with the event field.
func Parse(raw string) (*Token, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformed)
	}

	fields := strings.Split(raw, "|")
	if !strings.HasPrefix(fields[0], fieldEvent+":") {
		return nil, fmt.Errorf("%w: token must start with %s field", ErrMalformed, fieldEvent)
	}

	t := &Token{}
	for _, field := range fields {
		key, value, ok := strings.Cut(field, ":")
		if !ok {
			return nil, fmt.Errorf("%w: field %q has no separator", ErrMalformed, field)
		}
		switch key {
		case fieldEvent:
			t.EventID = value
		case fieldChapter:
			t.ChapterID = value
		case fieldSequence:
			t.SequenceID = value
		case fieldVersion:
			t.Version = value
		case fieldSignature:
			t.Signature = value
		case fieldTimestamp:
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: timestamp %q is not an integer", ErrMalformed, value)
			}
			t.Timestamp = ts
		case fieldNonce:
			t.Nonce = value
		case fieldChecksum:
			t.Checksum = value
		default:
			// Forward compatibility: skip fields this version does
			// not know about.
		}
	}

	for _, f := range []struct {
		key   string
		value string
	}{
		{fieldEvent, t.EventID},
		{fieldChapter, t.ChapterID},
		{fieldSequence, t.SequenceID},
		{fieldVersion, t.Version},
		{fieldSignature, t.Signature},
	} {
		if f.value == "" {
			return nil, fmt.Errorf("%w: missing field %s", ErrMalformed, f.key)
		}
	}

	return t, nil
}

// Encode renders t back to the wire format in canonical field order.
// The checksum trailer is emitted last so that verifiers can strip it
// before recomputing.
func Encode(t *Token) string {
	var b strings.Builder
	b.WriteString(fieldEvent + ":" + t.EventID)
	b.WriteString("|" + fieldChapter + ":" + t.ChapterID)
	b.WriteString("|" + fieldSequence + ":" + t.SequenceID)
	b.WriteString("|" + fieldVersion + ":" + t.Version)
	b.WriteString("|" + fieldSignature + ":" + t.Signature)
	if t.Timestamp != 0 {
		b.WriteString("|" + fieldTimestamp + ":" + strconv.FormatInt(t.Timestamp, 10))
	}
	if t.Nonce != "" {
		b.WriteString("|" + fieldNonce + ":" + t.Nonce)
	}
	if t.Checksum != "" {
		b.WriteString("|" + fieldChecksum + ":" + t.Checksum)
	}
	return b.String()
}

// SigningPayload is the byte string the HMAC signature covers: the
// key-prefixed core fields plus the optional timestamp and nonce,
// rendered exactly as Encode renders them, never the signature or
// checksum themselves.
func (t *Token) SigningPayload() string {
	parts := []string{
		fieldEvent + ":" + t.EventID,
		fieldChapter + ":" + t.ChapterID,
		fieldSequence + ":" + t.SequenceID,
		fieldVersion + ":" + t.Version,
	}
	if t.Timestamp != 0 {
		parts = append(parts, fieldTimestamp+":"+strconv.FormatInt(t.Timestamp, 10))
	}
	if t.Nonce != "" {
		parts = append(parts, fieldNonce+":"+t.Nonce)
	}
	return strings.Join(parts, "|")
}
