package search

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder turns raw body chunks into complete NDJSON lines.
//
// Bytes are decoded with a stateful UTF-8 transformer so a multi-byte rune
// split across two chunks is held back until its tail arrives. Decoded text
// is appended to a carry buffer; only the newly decoded text is scanned for
// '\n', and text after the last newline becomes the new carry.
type Decoder struct {
	text    transform.Transformer
	pending []byte
	carry   strings.Builder
}

// NewDecoder returns a Decoder with an empty carry buffer.
func NewDecoder() *Decoder {
	return &Decoder{
		text: unicode.UTF8.NewDecoder(),
	}
}

// Feed decodes chunk and returns the lines it completes, in order.
// Returned lines have no trailing newline and may be blank.
func (d *Decoder) Feed(chunk []byte) []string {
	text := d.decode(chunk)
	last := strings.LastIndexByte(text, '\n')
	if last < 0 {
		d.carry.WriteString(text)
		return nil
	}

	d.carry.WriteString(text[:last])
	lines := strings.Split(d.carry.String(), "\n")
	d.carry.Reset()
	d.carry.WriteString(text[last+1:])
	return lines
}

// Remainder returns the unterminated text held in the carry buffer,
// including any bytes of an incomplete trailing rune.
func (d *Decoder) Remainder() string {
	if len(d.pending) == 0 {
		return d.carry.String()
	}
	return d.carry.String() + string(d.pending)
}

// Reset clears the carry buffer and decoder state.
func (d *Decoder) Reset() {
	d.text.Reset()
	d.pending = nil
	d.carry.Reset()
}

func (d *Decoder) decode(chunk []byte) string {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}
	if len(src) == 0 {
		return ""
	}

	// Invalid bytes expand to U+FFFD (3 bytes each).
	dst := make([]byte, len(src)*3+utf8.UTFMax)
	var out strings.Builder
	for len(src) > 0 {
		nDst, nSrc, err := d.text.Transform(dst, src, false)
		out.Write(dst[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
			continue
		case errors.Is(err, transform.ErrShortDst):
			if nSrc == 0 && nDst == 0 {
				dst = make([]byte, len(dst)*2)
			}
			continue
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
			return out.String()
		default:
			d.pending = nil
			return out.String()
		}
	}
	return out.String()
}
