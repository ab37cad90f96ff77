package domain

import (
	"bytes"
	"fmt"
)

// Encoding is the declared image format of a raster payload.
type Encoding string

const (
	EncodingPNG     Encoding = "png"
	EncodingJPEG    Encoding = "jpeg"
	EncodingTIFF    Encoding = "tiff"
	EncodingUnknown Encoding = ""
)

var magicHeaders = map[Encoding][][]byte{
	EncodingPNG:  {[]byte("\x89PNG\r\n\x1a\n")},
	EncodingJPEG: {[]byte("\xff\xd8\xff")},
	// TIFF is either little-endian ("II*\0") or big-endian ("MM\0*").
	EncodingTIFF: {[]byte("II*\x00"), []byte("MM\x00*")},
}

// DetectEncoding sniffs a payload's magic bytes. Returns EncodingUnknown for
// anything that is not PNG, JPEG or TIFF.
func DetectEncoding(data []byte) Encoding {
	for enc, magics := range magicHeaders {
		for _, magic := range magics {
			if bytes.HasPrefix(data, magic) {
				return enc
			}
		}
	}
	return EncodingUnknown
}

// ValidatePayload checks that data matches the declared encoding's magic
// header. A payload with an unknown declared encoding is accepted iff it is
// non-empty.
func (e Encoding) ValidatePayload(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty payload")
	}
	magics, known := magicHeaders[e]
	if !known {
		return nil
	}
	for _, magic := range magics {
		if bytes.HasPrefix(data, magic) {
			return nil
		}
	}
	return fmt.Errorf("payload does not match %s magic header", e)
}

// Extension returns the file extension without the dot.
func (e Encoding) Extension() string {
	if e == EncodingUnknown {
		return "bin"
	}
	return string(e)
}

// ContentType returns the MIME type the provider is asked to render.
func (e Encoding) ContentType() string {
	switch e {
	case EncodingPNG:
		return "image/png"
	case EncodingJPEG:
		return "image/jpeg"
	case EncodingTIFF:
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
