package cbtoken

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"unicode/utf8"
)

const (
	// HashedNameLen is the number of digest bytes kept from a callback name.
	HashedNameLen = 8

	// MaxPayloadLen is the largest payload accepted, in UTF-8 bytes.
	MaxPayloadLen = 32

	// PreludeLen is the length of base64(signature || hashedName).
	// 24 raw bytes encode to exactly 32 characters with no padding.
	PreludeLen = 32

	preludeRawLen = SignatureLen + HashedNameLen
)

// HashedName is the truncated digest of a component-scoped callback name.
type HashedName [HashedNameLen]byte

func (h HashedName) String() string { return hex.EncodeToString(h[:]) }

// ScopedName joins a component and a callback into "<component>:<callback>".
func ScopedName(component, callback string) string {
	return component + ":" + callback
}

// HashName returns the first 8 bytes of the MD5 digest of name.
func HashName(name string) HashedName {
	sum := md5.Sum([]byte(name))
	var h HashedName
	copy(h[:], sum[:HashedNameLen])
	return h
}

// Encode builds the callback data for name and payload, bound to chatID.
// An empty payload means no payload.
func Encode(key Key, chatID int64, name, payload string) (string, error) {
	if len(payload) > MaxPayloadLen {
		return "", fmt.Errorf("%w: %d bytes, limit is %d", ErrPayloadTooLarge, len(payload), MaxPayloadLen)
	}
	hashed := HashName(name)
	sig := Sign(key, hashed, chatID, []byte(payload))

	var prelude [preludeRawLen]byte
	copy(prelude[:SignatureLen], sig[:])
	copy(prelude[SignatureLen:], hashed[:])

	return base64.StdEncoding.EncodeToString(prelude[:]) + payload, nil
}

// Decode verifies raw against chatID and returns the hashed callback name and
// the payload ("" when absent). Any failure is reported as ErrTampered.
func Decode(key Key, chatID int64, raw string) (HashedName, string, error) {
	var name HashedName

	b := []byte(raw)
	if len(b) < PreludeLen {
		return name, "", tampered("short input")
	}

	var prelude [preludeRawLen + 2]byte
	n, err := base64.StdEncoding.Decode(prelude[:], b[:PreludeLen])
	if err != nil {
		return name, "", tampered("prelude is not base64")
	}
	if n != preludeRawLen {
		return name, "", tampered("prelude has wrong size")
	}

	var sig Signature
	copy(sig[:], prelude[:SignatureLen])
	copy(name[:], prelude[SignatureLen:preludeRawLen])
	payload := b[PreludeLen:]

	if !Verify(sig, Sign(key, name, chatID, payload)) {
		return HashedName{}, "", tampered("signature mismatch")
	}
	if !utf8.Valid(payload) {
		return HashedName{}, "", tampered("payload is not utf-8")
	}
	return name, string(payload), nil
}

// Codec binds a Key so callers don't have to thread it everywhere.
// The zero value is unusable; build one with NewCodec.
type Codec struct {
	key Key
}

func NewCodec(key Key) Codec { return Codec{key: key} }

// Ready reports whether the codec has a key.
func (c Codec) Ready() bool { return !c.key.IsZero() }

func (c Codec) Encode(chatID int64, name, payload string) (string, error) {
	return Encode(c.key, chatID, name, payload)
}

func (c Codec) Decode(chatID int64, raw string) (HashedName, string, error) {
	return Decode(c.key, chatID, raw)
}
