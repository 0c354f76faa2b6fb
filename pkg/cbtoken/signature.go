package cbtoken

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"strconv"
)

// SignatureLen is the size of a callback signature in bytes.
const SignatureLen = md5.Size

// Signature is the keyed digest carried at the start of every token.
type Signature [SignatureLen]byte

// Key is the bot-scoped secret used to sign callback data.
// It is read-only after construction and redacts itself when printed.
type Key struct {
	b []byte
}

// NewKey derives a signing key from arbitrary secret material
// (a configured secret, or the bot token as a fallback).
func NewKey(material string) Key {
	sum := sha256.Sum256([]byte("signedkb/callback:" + material))
	return Key{b: sum[:]}
}

// KeyFromBytes wraps raw key bytes. The slice is copied.
func KeyFromBytes(b []byte) Key {
	return Key{b: append([]byte(nil), b...)}
}

// IsZero reports whether the key was never initialized.
func (k Key) IsZero() bool { return len(k.b) == 0 }

func (k Key) String() string { return "cbtoken.Key(redacted)" }

func (k Key) MarshalText() ([]byte, error) { return []byte("redacted"), nil }

// Sign computes HMAC-MD5(key, name || 0x00 || chatID || 0x00 || payload).
// The chat id is written in decimal.
func Sign(key Key, name HashedName, chatID int64, payload []byte) Signature {
	mac := hmac.New(md5.New, key.b)
	_, _ = mac.Write(name[:])
	_, _ = mac.Write([]byte{0})
	_, _ = mac.Write(strconv.AppendInt(nil, chatID, 10))
	_, _ = mac.Write([]byte{0})
	_, _ = mac.Write(payload)

	var sig Signature
	copy(sig[:], mac.Sum(nil))
	return sig
}

// Verify compares two signatures in constant time.
func Verify(got, want Signature) bool {
	return subtle.ConstantTimeCompare(got[:], want[:]) == 1
}
