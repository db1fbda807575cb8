// Package codec encodes the metadata documents that backends persist next
// to array data.
//
// Every metadata document records the name of the codec that wrote it, so a
// store written with one codec stays readable after the default changes.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// MustByName is ByName for names that were validated earlier.
func MustByName(name string) Codec {
	c, ok := ByName(name)
	if !ok {
		panic(fmt.Sprintf("codec: unknown codec %q", name))
	}
	return c
}
