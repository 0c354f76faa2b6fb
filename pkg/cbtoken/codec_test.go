package cbtoken

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

var testKey = NewKey("123456:test-token")

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		chatID  int64
		cb      string
		payload string
	}{
		{"no payload", 42, "echo:upper", ""},
		{"ascii payload", -1001234567890, "echo:lower", "hello world"},
		{"multibyte payload", 7, "counter:inc", "héllo ✓"},
		{"max payload", 0, "a:b", strings.Repeat("x", MaxPayloadLen)},
		{"payload with separators", 99, "x:y", "a:b\x00c"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tok, err := Encode(testKey, tc.chatID, tc.cb, tc.payload)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if len(tok) != PreludeLen+len(tc.payload) {
				t.Fatalf("token len = %d, want %d", len(tok), PreludeLen+len(tc.payload))
			}
			name, payload, err := Decode(testKey, tc.chatID, tok)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if name != HashName(tc.cb) {
				t.Fatalf("name = %s, want %s", name, HashName(tc.cb))
			}
			if payload != tc.payload {
				t.Fatalf("payload = %q, want %q", payload, tc.payload)
			}
		})
	}
}

func TestDecodeRejectsOtherChat(t *testing.T) {
	tok, err := Encode(testKey, 100, "echo:upper", "data")
	if err != nil {
		t.Fatal(err)
	}
	for _, other := range []int64{101, -100, 0, 1000} {
		if _, _, err := Decode(testKey, other, tok); !errors.Is(err, ErrTampered) {
			t.Fatalf("chat %d: err = %v, want ErrTampered", other, err)
		}
	}
}

func TestDecodeRejectsOtherKey(t *testing.T) {
	tok, err := Encode(testKey, 100, "echo:upper", "data")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := Decode(NewKey("another-token"), 100, tok); !errors.Is(err, ErrTampered) {
		t.Fatalf("err = %v, want ErrTampered", err)
	}
}

func TestDecodeDetectsBitFlips(t *testing.T) {
	const chat = 555
	payload := "pay"
	tok, err := Encode(testKey, chat, "comp:cb", payload)
	if err != nil {
		t.Fatal(err)
	}

	prelude, err := base64.StdEncoding.DecodeString(tok[:PreludeLen])
	if err != nil {
		t.Fatal(err)
	}
	// signature and hashed name region
	for i := range prelude {
		for bit := 0; bit < 8; bit++ {
			mut := append([]byte(nil), prelude...)
			mut[i] ^= 1 << bit
			raw := base64.StdEncoding.EncodeToString(mut) + payload
			if _, _, err := Decode(testKey, chat, raw); !errors.Is(err, ErrTampered) {
				t.Fatalf("prelude byte %d bit %d: err = %v, want ErrTampered", i, bit, err)
			}
		}
	}
	// payload region
	for i := 0; i < len(payload); i++ {
		for bit := 0; bit < 8; bit++ {
			mut := []byte(payload)
			mut[i] ^= 1 << bit
			raw := tok[:PreludeLen] + string(mut)
			if _, _, err := Decode(testKey, chat, raw); !errors.Is(err, ErrTampered) {
				t.Fatalf("payload byte %d bit %d: err = %v, want ErrTampered", i, bit, err)
			}
		}
	}
}

func TestEncodePayloadSizeBoundary(t *testing.T) {
	if _, err := Encode(testKey, 1, "a:b", strings.Repeat("é", 16)); err != nil {
		t.Fatalf("32-byte payload: %v", err)
	}
	_, err := Encode(testKey, 1, "a:b", strings.Repeat("x", MaxPayloadLen+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("33-byte payload: err = %v, want ErrPayloadTooLarge", err)
	}
	// 17 two-byte runes: 17 characters but 34 bytes
	_, err = Encode(testKey, 1, "a:b", strings.Repeat("é", 17))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("34-byte payload: err = %v, want ErrPayloadTooLarge", err)
	}
}

func TestDecodeShortInput(t *testing.T) {
	tok, err := Encode(testKey, 1, "a:b", "")
	if err != nil {
		t.Fatal(err)
	}
	for n := 0; n < PreludeLen; n++ {
		if _, _, err := Decode(testKey, 1, tok[:n]); !errors.Is(err, ErrTampered) {
			t.Fatalf("len %d: err = %v, want ErrTampered", n, err)
		}
	}
	if _, _, err := Decode(testKey, 1, strings.Repeat("A", 31)); !errors.Is(err, ErrTampered) {
		t.Fatalf("31 chars: err = %v, want ErrTampered", err)
	}
}

func TestDecodeMalformedInputIsTampered(t *testing.T) {
	cases := map[string]string{
		"not base64":     strings.Repeat("!", PreludeLen),
		"padded prelude": strings.Repeat("A", PreludeLen-2) + "==",
		"plugin style":   "echo:upper:aGVsbG8gd29ybGQgaGVsbG8gd29ybGQ",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode(testKey, 1, raw)
			if !errors.Is(err, ErrTampered) {
				t.Fatalf("err = %v, want ErrTampered", err)
			}
		})
	}
}

func TestDecodeRejectsInvalidUTF8Payload(t *testing.T) {
	const chat = 9
	payload := []byte{0xff, 0xfe}
	name := HashName("a:b")
	sig := Sign(testKey, name, chat, payload)
	raw := base64.StdEncoding.EncodeToString(append(sig[:], name[:]...)) + string(payload)

	_, _, err := Decode(testKey, chat, raw)
	if !errors.Is(err, ErrTampered) {
		t.Fatalf("err = %v, want ErrTampered", err)
	}
	if got := TamperReason(err); got != "payload is not utf-8" {
		t.Fatalf("reason = %q", got)
	}
}

func TestTamperedErrorsLookAlike(t *testing.T) {
	tok, _ := Encode(testKey, 1, "a:b", "x")
	inputs := []string{"short", strings.Repeat("!", 40), tok + "y"}
	for _, raw := range inputs {
		_, _, err := Decode(testKey, 1, raw)
		if err == nil || err.Error() != ErrTampered.Error() {
			t.Fatalf("%q: err = %v", raw, err)
		}
	}
}

func TestCodecMatchesPackageFunctions(t *testing.T) {
	c := NewCodec(testKey)
	if !c.Ready() {
		t.Fatal("codec not ready")
	}
	tok, err := c.Encode(3, "x:y", "p")
	if err != nil {
		t.Fatal(err)
	}
	want, _ := Encode(testKey, 3, "x:y", "p")
	if tok != want {
		t.Fatalf("codec token %q != %q", tok, want)
	}
	if _, p, err := c.Decode(3, tok); err != nil || p != "p" {
		t.Fatalf("Decode = %q, %v", p, err)
	}
	if (Codec{}).Ready() {
		t.Fatal("zero codec reported ready")
	}
}
