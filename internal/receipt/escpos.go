package receipt

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	ESC = 0x1B
	GS  = 0x1D
	LF  = 0x0A
)

const (
	AlignLeft   = 0
	AlignCenter = 1
	AlignRight  = 2
)

const (
	FontNormal = 0x00
	FontDouble = 0x11
)

// Document builds an ESC/POS byte stream and keeps a plain-text copy of
// every printed line for on-screen previews.
type Document struct {
	buf     bytes.Buffer
	preview []string
	width   int
	align   int
}

// NewDocument starts a document of charWidth columns: 32 for 58mm paper,
// 42 or 48 for 80mm.
func NewDocument(charWidth int) *Document {
	if charWidth <= 0 {
		charWidth = 32
	}
	d := &Document{width: charWidth}
	d.Init()
	return d
}

func (d *Document) Init() *Document {
	d.buf.Write([]byte{ESC, '@'})
	return d
}

func (d *Document) FeedLines(n int) *Document {
	for i := 0; i < n; i++ {
		d.buf.WriteByte(LF)
		d.preview = append(d.preview, "")
	}
	return d
}

func (d *Document) SetAlign(align int) *Document {
	d.align = align
	d.buf.Write([]byte{ESC, 'a', byte(align)})
	return d
}

func (d *Document) SetBold(on bool) *Document {
	b := byte(0)
	if on {
		b = 1
	}
	d.buf.Write([]byte{ESC, 'E', b})
	return d
}

func (d *Document) SetFontSize(size byte) *Document {
	d.buf.Write([]byte{GS, '!', size})
	return d
}

func (d *Document) Text(s string) *Document {
	d.writeLine(s)
	return d
}

func (d *Document) TextF(format string, args ...any) *Document {
	return d.Text(fmt.Sprintf(format, args...))
}

func (d *Document) Separator(char byte) *Document {
	d.writeLine(strings.Repeat(string(char), d.width))
	return d
}

// KeyValue prints key on the left and value flush right.
func (d *Document) KeyValue(key, value string) *Document {
	d.writeLine(justify(key, value, d.width))
	return d
}

// ItemLine prints "2x Name" with the line total flush right. Long names are
// cut to keep the total on the same line.
func (d *Document) ItemLine(qty int, name, total string) *Document {
	prefix := fmt.Sprintf("%dx ", qty)
	room := d.width - len(prefix) - len(total) - 1
	if room > 0 && len(name) > room {
		name = name[:room]
	}
	d.writeLine(justify(prefix+name, total, d.width))
	return d
}

func (d *Document) PartialCut() *Document {
	d.buf.Write([]byte{GS, 'V', 'A', 0x10})
	return d
}

func (d *Document) Bytes() []byte {
	return d.buf.Bytes()
}

func (d *Document) Preview() string {
	return strings.Join(d.preview, "\n")
}

func (d *Document) writeLine(s string) {
	d.buf.WriteString(s)
	d.buf.WriteByte(LF)
	d.preview = append(d.preview, d.pad(s))
}

func (d *Document) pad(s string) string {
	gap := d.width - len(s)
	if gap <= 0 {
		return s
	}
	switch d.align {
	case AlignCenter:
		return strings.Repeat(" ", gap/2) + s
	case AlignRight:
		return strings.Repeat(" ", gap) + s
	default:
		return s
	}
}

func justify(left, right string, width int) string {
	spaces := width - len(left) - len(right)
	if spaces < 1 {
		spaces = 1
	}
	return left + strings.Repeat(" ", spaces) + right
}
