package csv

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DecodeReader wraps r so that its bytes are decoded from the named charset
// into UTF-8. Supported names: "utf-8" (passthrough), "latin-1"/"iso-8859-1",
// "windows-1252"/"cp1252", and "auto".
//
// "auto" reads the whole input and keeps it as-is when it is valid UTF-8;
// otherwise it is decoded as Latin-1, which accepts every byte value. That
// mirrors the fallback order real-world sales exports need (UTF-8 first,
// single-byte Western charsets second). The inputs this pipeline handles are
// small batch files, so buffering for detection is acceptable.
func DecodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return r, nil
	case "latin-1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	case "auto":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read source for charset detection: %w", err)
		}
		if utf8.Valid(data) {
			return bytes.NewReader(data), nil
		}
		return transform.NewReader(bytes.NewReader(data), charmap.ISO8859_1.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}
