package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrDecode indicates malformed input to one of the audio decoders:
// base64 text outside the standard alphabet, invalid padding, or a PCM
// payload with an incomplete final sample.
var ErrDecode = errors.New("audio decode error")

// DecodeBase64 decodes a base64-encoded audio payload into raw bytes.
// The input must use the standard base64 alphabet with padding.
func DecodeBase64(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 payload: %v", ErrDecode, err)
	}
	return data, nil
}

// EncodeBase64 encodes raw audio bytes as base64 text. It is the exact
// inverse of DecodeBase64.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
