// Package codec converts typed values to and from the byte slices that
// backends store. Codecs are stateless unless documented otherwise and safe
// for concurrent use.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
