package compress

import "fmt"

// Compress encodes revision snapshot content at rest.
type Compress interface {
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

const (
	NameNop    = "nop"
	NameGZip   = "gzip"
	NameBrotli = "brotli"
	NameLZ4    = "lz4"
)

// New returns the compressor registered under name. An empty name means nop.
func New(name string) (Compress, error) {
	switch name {
	case "", NameNop:
		return NewNop(), nil
	case NameGZip:
		return NewGZip(), nil
	case NameBrotli:
		return NewBrotli(), nil
	case NameLZ4:
		return NewLZ4(), nil
	}

	return nil, fmt.Errorf("unknown compression %q", name)
}
