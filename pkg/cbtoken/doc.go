// Package cbtoken signs and verifies inline-keyboard callback data.
//
// A token is the base64 encoding of a 16-byte signature followed by the
// first 8 bytes of the callback name digest, with the raw payload appended:
//
//	base64(signature || hashedName) + payload
//
// The signature binds the hashed name, the chat id and the payload, so a
// token copied to another chat or edited by the user fails verification.
// Payloads are authenticated, not encrypted.
package cbtoken
