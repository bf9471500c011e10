package token

// Issue signs t and renders it to the wire format. When withChecksum
// is set a CRC32 trailer is appended over the signed token. The
// token's Signature and Checksum fields are filled in as a side
// effect.
func (v *Verifier) Issue(t *Token, withChecksum bool) string {
	t.Signature = v.Sign(t)
	t.Checksum = ""
	raw := Encode(t)
	if withChecksum {
		t.Checksum = Checksum(raw)
		raw += "|" + fieldChecksum + ":" + t.Checksum
	}
	return raw
}
