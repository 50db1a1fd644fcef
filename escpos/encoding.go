package escpos

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

type codePage struct {
	table  *charmap.Charmap
	number byte
}

var codePages = map[string]codePage{
	"CP437":        {charmap.CodePage437, 0},
	"PC437":        {charmap.CodePage437, 0},
	"CP850":        {charmap.CodePage850, 2},
	"PC850":        {charmap.CodePage850, 2},
	"CP858":        {charmap.CodePage858, 19},
	"CP1252":       {charmap.Windows1252, 16},
	"WINDOWS-1252": {charmap.Windows1252, 16},
	"WPC1252":      {charmap.Windows1252, 16},
}

func lookupCodePage(name string) (codePage, bool) {
	if name == "" {
		return codePages["CP437"], true
	}
	cp, ok := codePages[strings.ToUpper(strings.TrimSpace(name))]
	return cp, ok
}

// CodePageNumber returns the ESC t table number for an encoding name
func CodePageNumber(name string) byte {
	cp, ok := lookupCodePage(name)
	if !ok {
		return 0
	}
	return cp.number
}

// Encode converts UTF-8 text to the named printer code page.
// Runes the code page cannot represent become '?'. ASCII control bytes,
// including embedded ESC/GS sequences, pass through unchanged.
func Encode(text, name string) ([]byte, error) {
	cp, ok := lookupCodePage(name)
	if !ok {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}

	out := make([]byte, 0, len(text))
	for len(text) > 0 {
		r, size := utf8.DecodeRuneInString(text)
		text = text[size:]

		if r < utf8.RuneSelf {
			out = append(out, byte(r))
			continue
		}
		if b, ok := cp.table.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		out = append(out, '?')
	}
	return out, nil
}
