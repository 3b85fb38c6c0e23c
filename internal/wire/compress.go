package wire

import (
	"github.com/golang/snappy"

	"github.com/xtxerr/eegstore/internal/errors"
)

// Decompress undoes a Content-Encoding. Only snappy block format is
// supported; identity encodings pass through. maxSize <= 0 disables the
// decoded size check.
func Decompress(body []byte, encoding string, maxSize int) ([]byte, error) {
	switch encoding {
	case "", "identity":
		return body, nil
	case EncodingSnappy:
	default:
		return nil, errors.Wrapf(errors.ErrUnsupportedMediaType, "content encoding %q", encoding)
	}

	n, err := snappy.DecodedLen(body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedBody, "snappy header: %v", err)
	}
	if maxSize > 0 && n > maxSize {
		return nil, errors.Wrapf(errors.ErrBodyTooLarge, "decoded body of %d bytes exceeds %d", n, maxSize)
	}

	out, err := snappy.Decode(nil, body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedBody, "snappy decode: %v", err)
	}
	return out, nil
}

// Compress applies snappy block compression.
func Compress(body []byte) []byte {
	return snappy.Encode(nil, body)
}
