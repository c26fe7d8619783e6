package photos

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"
)

// ErrInvalidDataURI is returned for strings not of the form
// data:<mimetype>;base64,<payload>.
var ErrInvalidDataURI = errors.New("photos: invalid data uri")

// DataURI is a decoded data: URI.
type DataURI struct {
	MIMEType string
	Data     []byte
}

// ParseDataURI decodes s. Only base64 payloads with an explicit media type
// are accepted.
func ParseDataURI(s string) (DataURI, error) {
	return ParseDataURIMax(s, 0)
}

// ParseDataURIMax is ParseDataURI with a cap on the decoded size. Payloads
// whose decoded length would exceed maxBytes fail with ErrTooLarge before
// anything is decoded. A maxBytes of zero or less disables the cap.
func ParseDataURIMax(s string, maxBytes int) (DataURI, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return DataURI{}, fmt.Errorf("%w: missing data: scheme", ErrInvalidDataURI)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return DataURI{}, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURI)
	}
	mediaType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return DataURI{}, fmt.Errorf("%w: payload must be base64", ErrInvalidDataURI)
	}
	mimeType, _, err := mime.ParseMediaType(mediaType)
	if err != nil || !strings.Contains(mimeType, "/") {
		return DataURI{}, fmt.Errorf("%w: bad media type %q", ErrInvalidDataURI, mediaType)
	}
	if maxBytes > 0 {
		if n := decodedLen(payload); n > maxBytes {
			return DataURI{}, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, n, maxBytes)
		}
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return DataURI{}, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	if len(data) == 0 {
		return DataURI{}, fmt.Errorf("%w: empty payload", ErrInvalidDataURI)
	}
	return DataURI{MIMEType: mimeType, Data: data}, nil
}

// decodedLen is the decoded size of a padded base64 payload. Malformed
// payloads may be under-counted; decoding rejects them afterwards.
func decodedLen(payload string) int {
	n := base64.StdEncoding.DecodedLen(len(payload))
	if len(payload)%4 == 0 {
		n -= len(payload) - len(strings.TrimRight(payload, "="))
	}
	return max(n, 0)
}

// String re-encodes the URI.
func (d DataURI) String() string {
	return "data:" + d.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(d.Data)
}

// Extension returns the file extension used when archiving.
func (d DataURI) Extension() string {
	switch d.MIMEType {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	case "image/heic":
		return "heic"
	}
	return "bin"
}
