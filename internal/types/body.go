package types

import (
	"bytes"
	"encoding/json"
)

var emptyBodyBytes = []byte("{}")

// DocumentBody is an immutable byte payload with an optional JSON-object
// view. The zero value and any empty input normalize to the literal "{}".
type DocumentBody struct {
	raw []byte
}

// NewDocumentBody copies raw into a body. Nil or empty input yields the
// empty body.
func NewDocumentBody(raw []byte) DocumentBody {
	if len(raw) == 0 {
		return DocumentBody{raw: emptyBodyBytes}
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return DocumentBody{raw: cp}
}

// EmptyBody returns the canonical empty body "{}".
func EmptyBody() DocumentBody {
	return DocumentBody{raw: emptyBodyBytes}
}

// Bytes returns a copy of the payload.
func (b DocumentBody) Bytes() []byte {
	raw := b.raw
	if len(raw) == 0 {
		raw = emptyBodyBytes
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return cp
}

// Map decodes the payload as a JSON object.
func (b DocumentBody) Map() (map[string]interface{}, error) {
	raw := b.raw
	if len(raw) == 0 {
		raw = emptyBodyBytes
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// IsEmpty reports whether the body is the canonical empty object.
func (b DocumentBody) IsEmpty() bool {
	return len(b.raw) == 0 || bytes.Equal(b.raw, emptyBodyBytes)
}

// Equal reports whether two bodies carry identical bytes.
func (b DocumentBody) Equal(other DocumentBody) bool {
	return bytes.Equal(b.Bytes(), other.Bytes())
}
