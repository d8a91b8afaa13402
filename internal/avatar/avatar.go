package avatar

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// MaxBytes caps uploads at 500KB. Base64 encoding adds roughly a third,
// and the encoded data URL has to fit inside the professor document.
const MaxBytes = 500 * 1024

// Validation failures reported to the uploader with a 400.
var (
	ErrNoFile   = errors.New("no file provided, please select an image file")
	ErrNotImage = errors.New("file must be an image")
	ErrTooLarge = fmt.Errorf("image is too large, maximum size is %dKB", MaxBytes/1024)
)

// Encode validates raw image bytes and returns a base64 data URL.
// The content type is sniffed from the bytes, never trusted from the
// request, so a mislabeled upload cannot smuggle a non-image.
func Encode(data []byte, maxBytes int) (string, error) {
	if maxBytes <= 0 {
		maxBytes = MaxBytes
	}
	if len(data) == 0 {
		return "", ErrNoFile
	}
	if len(data) > maxBytes {
		return "", ErrTooLarge
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", ErrNotImage
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Decode splits a data URL back into its mime type and raw bytes.
func Decode(dataURL string) (string, []byte, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", nil, errors.New("not a data URL")
	}
	rest := dataURL[len("data:"):]
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return "", nil, errors.New("not a base64 data URL")
	}
	mime := rest[:sep]
	data, err := base64.StdEncoding.DecodeString(rest[sep+len(";base64,"):])
	if err != nil {
		return "", nil, fmt.Errorf("decode data URL: %w", err)
	}
	return mime, data, nil
}
