package tally

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/OnlyOnCloud/TallySyncService/internal/core"
)

const sniffLen = 3072

var (
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}

	lineErrorRegex = regexp.MustCompile(`(?is)<LINEERROR>(.*?)</LINEERROR>`)
	responseRegex  = regexp.MustCompile(`(?is)^\s*<RESPONSE>(.*?)</RESPONSE>`)
	encodingRegex  = regexp.MustCompile(`^(\s*<\?xml[^>]*?encoding\s*=\s*["'])[^"']*(["'])`)
)

// toUTF8 converts a UTF-16 response to UTF-8. Tally emits UTF-16 when the
// company data contains non-Latin text, with or without a byte order mark.
func toUTF8(b []byte) ([]byte, error) {
	var dec transform.Transformer
	switch {
	case bytes.HasPrefix(b, bomUTF16LE), bytes.HasPrefix(b, bomUTF16BE):
		dec = unicode.BOMOverride(encoding.Nop.NewDecoder())
	case len(b) >= 2 && b[0] == '<' && b[1] == 0:
		dec = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	case len(b) >= 2 && b[0] == 0 && b[1] == '<':
		dec = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	default:
		return b, nil
	}

	out, _, err := transform.Bytes(dec, b)
	if err != nil {
		return nil, fmt.Errorf("decode utf-16 response: %w", err)
	}
	// The declaration still names UTF-16, which the XML decoder refuses.
	return encodingRegex.ReplaceAll(out, []byte("${1}UTF-8${2}")), nil
}

// decodeResponse normalizes the charset and rejects bodies that are not an export.
func decodeResponse(b []byte) ([]byte, error) {
	out, err := toUTF8(b)
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(out)) == 0 {
		return nil, fmt.Errorf("%w: empty response", core.ErrSourceRejected)
	}

	// Control bytes are expected in exports and cleaned later; sniff the
	// sanitized head so they are not mistaken for binary content.
	head := out[:min(len(out), sniffLen)]
	mt := mimetype.Detect(core.SanitizeXML(head))
	if mt.Is("text/html") {
		return nil, fmt.Errorf("%w: got an HTML page instead of an export", core.ErrSourceRejected)
	}
	if !isText(mt) {
		return nil, fmt.Errorf("%w: unexpected content type %s", core.ErrSourceRejected, mt.String())
	}

	if m := responseRegex.FindSubmatch(out); m != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrSourceRejected, clean(m[1]))
	}
	if m := lineErrorRegex.FindSubmatch(out); m != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrSourceRejected, clean(m[1]))
	}

	return out, nil
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func clean(b []byte) string {
	s := strings.Join(strings.Fields(string(b)), " ")
	if s == "" {
		return "request rejected"
	}
	return s
}
