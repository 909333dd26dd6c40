package roster

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// normalizeEncoding returns the input as valid UTF-8. Roster exports come
// from clients in varied locales; anything that is not already UTF-8 is
// assumed to be Windows-1252 (covers ISO-8859-1 for the byte range the
// exports use) and transcoded, with undecodable bytes dropped.
func normalizeEncoding(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil || !utf8.Valid(out) {
		// Last resort: strip whatever still does not decode.
		return bytes.ToValidUTF8(out, nil)
	}
	return out
}
