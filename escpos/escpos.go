// Package escpos builds ESC/POS command sequences for receipt printers.
package escpos

import (
	"bytes"
	"fmt"
	"strings"
)

// Control characters
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
	LF  byte = 0x0A
)

// Alignment values for ESC a
type Alignment byte

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// Barcode HRI (human readable interpretation) positions for GS H
const (
	HRINone  byte = 0
	HRIAbove byte = 1
	HRIBelow byte = 2
	HRIBoth  byte = 3
)

const (
	barcodeCode128 byte = 73
	maxBarcodeData      = 253
)

// Builder collects ESC/POS commands
type Builder struct {
	buf bytes.Buffer
	err error
}

// New returns an empty builder
func New() *Builder {
	return &Builder{}
}

// Init resets the printer (ESC @)
func (b *Builder) Init() *Builder {
	b.buf.Write([]byte{ESC, '@'})
	return b
}

// Align sets justification (ESC a n)
func (b *Builder) Align(a Alignment) *Builder {
	if a > AlignRight {
		a = AlignLeft
	}
	b.buf.Write([]byte{ESC, 'a', byte(a)})
	return b
}

// Bold toggles emphasized mode (ESC E n)
func (b *Builder) Bold(on bool) *Builder {
	b.buf.Write([]byte{ESC, 'E', boolByte(on)})
	return b
}

// Size sets character width and height multipliers, 1 to 8 (GS ! n)
func (b *Builder) Size(width, height int) *Builder {
	b.buf.Write([]byte{GS, '!', sizeByte(width, height)})
	return b
}

// Font selects character font A (0) or B (1) (ESC M n)
func (b *Builder) Font(font int) *Builder {
	if font < 0 || font > 1 {
		font = 0
	}
	b.buf.Write([]byte{ESC, 'M', byte(font)})
	return b
}

// CodePage selects the character code table (ESC t n)
func (b *Builder) CodePage(n byte) *Builder {
	b.buf.Write([]byte{ESC, 't', n})
	return b
}

// Text appends text encoded in the given code page
func (b *Builder) Text(text, encoding string) *Builder {
	data, err := Encode(text, encoding)
	if err != nil && b.err == nil {
		b.err = err
	}
	b.buf.Write(data)
	return b
}

// Line appends text followed by a line feed
func (b *Builder) Line(text, encoding string) *Builder {
	b.Text(text, encoding)
	b.buf.WriteByte(LF)
	return b
}

// Feed prints the buffer and feeds n lines (ESC d n)
func (b *Builder) Feed(lines int) *Builder {
	if lines < 0 {
		lines = 0
	}
	if lines > 255 {
		lines = 255
	}
	b.buf.Write([]byte{ESC, 'd', byte(lines)})
	return b
}

// Cut feeds to the cutter and performs a partial cut (GS V 66 0)
func (b *Builder) Cut() *Builder {
	b.buf.Write([]byte{GS, 'V', 66, 0})
	return b
}

// Barcode128 prints data as a CODE128 barcode using code set B.
// height is in dots (1-255), width is the module width (2-6). A literal "{"
// is sent as "{{" so it cannot switch code sets.
func (b *Builder) Barcode128(data string, height, width int, hri byte) *Builder {
	payload := append([]byte("{B"), strings.ReplaceAll(data, "{", "{{")...)
	if len(data) == 0 || len(payload) > maxBarcodeData {
		if b.err == nil {
			b.err = fmt.Errorf("barcode data length %d out of range", len(data))
		}
		return b
	}
	for _, c := range []byte(data) {
		if c < 0x20 || c > 0x7E {
			if b.err == nil {
				b.err = fmt.Errorf("barcode data contains non-printable byte 0x%02x", c)
			}
			return b
		}
	}

	height = clamp(height, 1, 255)
	width = clamp(width, 2, 6)
	if hri > HRIBoth {
		hri = HRINone
	}

	b.buf.Write([]byte{GS, 'h', byte(height)})
	b.buf.Write([]byte{GS, 'w', byte(width)})
	b.buf.Write([]byte{GS, 'H', hri})
	b.buf.Write([]byte{GS, 'k', barcodeCode128, byte(len(payload))})
	b.buf.Write(payload)
	return b
}

// Raw appends bytes as-is
func (b *Builder) Raw(data []byte) *Builder {
	b.buf.Write(data)
	return b
}

// Err returns the first error recorded while building
func (b *Builder) Err() error {
	return b.err
}

// Bytes returns the collected command bytes
func (b *Builder) Bytes() []byte {
	return b.buf.Bytes()
}

// Len returns the number of buffered bytes
func (b *Builder) Len() int {
	return b.buf.Len()
}

func boolByte(on bool) byte {
	if on {
		return 1
	}
	return 0
}

func sizeByte(width, height int) byte {
	width = clamp(width, 1, 8)
	height = clamp(height, 1, 8)
	return byte((width-1)<<4 | (height - 1))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
