package core

// sanitize.go repairs source exports that are not well-formed XML.
//
// The source system happily emits control characters, stray bytes from
// legacy code pages and numeric character references to code points that
// XML 1.0 forbids (e.g. "&#4;"). All of these become a single space so the
// document can be parsed and the surrounding record survives.

import (
	"bytes"
	"regexp"
	"strconv"
	"unicode/utf8"
)

// charRefRegex matches decimal and hexadecimal numeric character references.
var charRefRegex = regexp.MustCompile(`&#([0-9]+|[xX][0-9a-fA-F]+);`)

// SanitizeXML returns a copy of data with every character that XML 1.0 does
// not allow replaced by a space. Input is treated as UTF-8.
func SanitizeXML(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	if bytes.Contains(data, []byte("&#")) {
		data = charRefRegex.ReplaceAllFunc(data, func(ref []byte) []byte {
			if isAllowedCharRef(ref) {
				return ref
			}
			return []byte{' '}
		})
	}

	if isCleanASCII(data) {
		return bytes.Clone(data)
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if (r == utf8.RuneError && size == 1) || !isXMLChar(r) {
			out = append(out, ' ')
		} else {
			out = append(out, data[i:i+size]...)
		}
		i += size
	}
	return out
}

// isCleanASCII is the fast path: printable ASCII plus tab, CR and LF.
func isCleanASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 || (b < 0x20 && b != '\t' && b != '\n' && b != '\r') {
			return false
		}
	}
	return true
}

// isXMLChar reports whether r is in the XML 1.0 Char production.
func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

// isAllowedCharRef decodes a "&#...;" reference and checks its code point.
func isAllowedCharRef(ref []byte) bool {
	body := string(ref[2 : len(ref)-1])
	base := 10
	if body[0] == 'x' || body[0] == 'X' {
		body = body[1:]
		base = 16
	}
	cp, err := strconv.ParseUint(body, base, 32)
	if err != nil {
		return false
	}
	return isXMLChar(rune(cp))
}
