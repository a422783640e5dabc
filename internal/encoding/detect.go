// Package encoding normalizes the text encoding of uploaded treasury sheets.
// Spreadsheets exported on Windows usually arrive as Windows-1252, bank
// exports sometimes as UTF-16 with a BOM.
package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	xenc "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Charset names the encoding a source file was read as.
type Charset string

const (
	UTF8        Charset = "UTF-8"
	UTF16LE     Charset = "UTF-16LE"
	UTF16BE     Charset = "UTF-16BE"
	Windows1252 Charset = "windows-1252"
	ISO88599    Charset = "ISO-8859-9"
	ISO885915   Charset = "ISO-8859-15"
)

// sniffSize is how much of the file is inspected before deciding.
const sniffSize = 4096

var boms = []struct {
	prefix  []byte
	charset Charset
}{
	{[]byte{0xEF, 0xBB, 0xBF}, UTF8},
	{[]byte{0xFF, 0xFE}, UTF16LE},
	{[]byte{0xFE, 0xFF}, UTF16BE},
}

var decoders = map[Charset]xenc.Encoding{
	UTF16LE:     unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	UTF16BE:     unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
	Windows1252: charmap.Windows1252,
	ISO88599:    charmap.ISO8859_9,
	ISO885915:   charmap.ISO8859_15,
}

// chardet reports Latin-1 for most Portuguese files; Windows-1252 is a
// superset that also covers the euro sign.
var aliases = map[string]Charset{
	"UTF-8":        UTF8,
	"ISO-8859-1":   Windows1252,
	"windows-1252": Windows1252,
	"ISO-8859-9":   ISO88599,
	"ISO-8859-15":  ISO885915,
}

// Detect guesses the charset of r and returns a reader that yields UTF-8.
//
// Detection order:
//  1. BOM (a UTF-8 BOM is stripped, UTF-16 is decoded)
//  2. valid UTF-8 is passed through
//  3. chardet heuristics
//  4. Windows-1252
func Detect(r io.Reader) (Charset, io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffSize)

	buf, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return "", nil, fmt.Errorf("peek: %w", err)
	}

	for _, bom := range boms {
		if !bytes.HasPrefix(buf, bom.prefix) {
			continue
		}

		if bom.charset == UTF8 {
			_, _ = br.Discard(len(bom.prefix))
			return UTF8, br, nil
		}

		return bom.charset, decode(br, bom.charset), nil
	}

	if validUTF8(buf) {
		return UTF8, br, nil
	}

	charset := Windows1252

	if result, err := chardet.NewTextDetector().DetectBest(buf); err == nil {
		if c, ok := aliases[result.Charset]; ok {
			charset = c
		}
	}

	if charset == UTF8 {
		return UTF8, br, nil
	}

	return charset, decode(br, charset), nil
}

// NewUTF8Reader is Detect without the charset.
func NewUTF8Reader(r io.Reader) (io.Reader, error) {
	_, out, err := Detect(r)
	return out, err
}

func decode(r io.Reader, c Charset) io.Reader {
	return transform.NewReader(r, decoders[c].NewDecoder())
}

// validUTF8 tolerates a multi-byte rune cut at the end of the sniffed window.
func validUTF8(buf []byte) bool {
	if utf8.Valid(buf) {
		return true
	}

	if len(buf) < sniffSize {
		return false
	}

	for cut := 1; cut < utf8.UTFMax && cut < len(buf); cut++ {
		if utf8.Valid(buf[:len(buf)-cut]) {
			return true
		}
	}

	return false
}
