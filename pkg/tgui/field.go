package tgui

import "signedkb/pkg/cbtoken"

// RenderContext carries everything a deferred field needs at render time.
type RenderContext struct {
	ChatID int64
	Codec  cbtoken.Codec
}

// Field is a button field value: either static, or computed at render time.
type Field struct {
	value string
	fn    func(rc RenderContext) (string, error)
}

// Static returns a field with a fixed value.
func Static(v string) Field { return Field{value: v} }

// Deferred returns a field computed by fn each time the keyboard renders.
func Deferred(fn func(rc RenderContext) (string, error)) Field {
	return Field{fn: fn}
}

// IsDeferred reports whether the field is computed at render time.
func (f Field) IsDeferred() bool { return f.fn != nil }

// Resolve returns the concrete value of the field for rc.
func (f Field) Resolve(rc RenderContext) (string, error) {
	if f.fn == nil {
		return f.value, nil
	}
	return f.fn(rc)
}

// signedCallback defers encoding of a component-scoped callback until render.
func signedCallback(name, payload string) Field {
	return Deferred(func(rc RenderContext) (string, error) {
		return rc.Codec.Encode(rc.ChatID, name, payload)
	})
}
