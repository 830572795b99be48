package orders

import (
	"errors"

	"github.com/tidwall/gjson"
)

var errInvalidDocument = errors.New("orders: invalid JSON document")

// Order is a single buyer order record as produced upstream. The document is
// kept verbatim: fields are looked up by path and the record is re-encoded
// byte for byte.
type Order struct {
	raw []byte
	doc gjson.Result
}

// New wraps a raw JSON document. The bytes are copied.
func New(raw []byte) Order {
	buf := make([]byte, len(raw))
	copy(buf, raw)
	return Order{raw: buf, doc: gjson.ParseBytes(buf)}
}

// Parse is New with syntax validation.
func Parse(raw []byte) (Order, error) {
	if !gjson.ValidBytes(raw) {
		return Order{}, errInvalidDocument
	}
	return New(raw), nil
}

func (o *Order) UnmarshalJSON(b []byte) error {
	if !gjson.ValidBytes(b) {
		return errInvalidDocument
	}
	*o = New(b)
	return nil
}

func (o Order) MarshalJSON() ([]byte, error) {
	if len(o.raw) == 0 {
		return []byte("null"), nil
	}
	return o.raw, nil
}

// Raw returns the document bytes. Callers must not modify them.
func (o Order) Raw() []byte {
	return o.raw
}

// Valid reports whether the record is a JSON object. Anything else (zero
// value, null, scalars, arrays) matches no tab.
func (o Order) Valid() bool {
	return o.doc.IsObject()
}

// ID returns the order identifier when present.
func (o Order) ID() string {
	v, ok := firstPresent(o.doc, idPaths)
	if !ok {
		return ""
	}
	return v.String()
}
