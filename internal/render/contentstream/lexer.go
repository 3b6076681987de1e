// Package contentstream tokenizes PDF page content streams into drawing
// operators. It covers the subset the vector-region detector and the page-text
// fallback need: path construction, painting, transforms, text blocks and
// text-showing operators.
package contentstream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Operand is a single operand preceding an operator: a number, a string
// (from text-showing operators) or an array of either.
type Operand struct {
	Num   float64
	Str   string
	Arr   []Operand
	IsNum bool
	IsStr bool
	IsArr bool
}

// Op is one operator with its operands, in stream order.
type Op struct {
	Operator string
	Operands []Operand
}

// Nums returns the numeric operands in order, skipping everything else.
func (o Op) Nums() []float64 {
	var out []float64
	for _, a := range o.Operands {
		if a.IsNum {
			out = append(out, a.Num)
		}
	}
	return out
}

// Lexer tokenizes a content stream.
type Lexer struct {
	reader *bufio.Reader
}

// NewLexer creates a lexer over a raw (decoded) content stream.
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{reader: bufio.NewReader(r)}
}

// Parse tokenizes the whole stream into operators. Unknown constructs are
// skipped rather than failing: content streams in the wild carry operators
// this package does not model.
func Parse(data []byte) ([]Op, error) {
	l := NewLexer(bytes.NewReader(data))
	var ops []Op
	var stack []Operand

	for {
		operand, operator, err := l.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ops, err
		}
		if operator == "BI" {
			// Inline image: parameter dictionary, then a raw binary payload
			// that must not be tokenized. Skip everything through EI.
			if err := l.skipInlineImage(); err != nil {
				if err == io.EOF {
					break
				}
				return ops, err
			}
			stack = nil
			continue
		}
		if operator != "" {
			ops = append(ops, Op{Operator: operator, Operands: stack})
			stack = nil
			continue
		}
		stack = append(stack, operand)
	}
	return ops, nil
}

// skipInlineImage consumes bytes until a whitespace-delimited EI token. The
// payload can contain any byte values, so only a delimited EI counts.
func (l *Lexer) skipInlineImage() error {
	prev := byte('\n')
	for {
		b, err := l.reader.ReadByte()
		if err != nil {
			return err
		}
		if b == 'E' && isWhitespace(prev) {
			peek, _ := l.reader.Peek(2)
			if len(peek) >= 1 && peek[0] == 'I' &&
				(len(peek) == 1 || isWhitespace(peek[1]) || isDelimiter(peek[1])) {
				l.reader.ReadByte()
				return nil
			}
		}
		prev = b
	}
}

// next returns either one operand or one operator token.
func (l *Lexer) next() (Operand, string, error) {
	l.skipWhitespace()

	b, err := l.reader.Peek(1)
	if err != nil {
		return Operand{}, "", err
	}

	switch c := b[0]; {
	case c == '%':
		l.skipLine()
		return l.next()
	case c == '(':
		s, err := l.readString()
		return Operand{Str: s, IsStr: true}, "", err
	case c == '<':
		peek, _ := l.reader.Peek(2)
		if len(peek) == 2 && peek[1] == '<' {
			// Dictionary (inline image params etc.) - skip balanced.
			return Operand{}, "", l.skipDict()
		}
		s, err := l.readHexString()
		return Operand{Str: s, IsStr: true}, "", err
	case c == '[':
		arr, err := l.readArray()
		return Operand{Arr: arr, IsArr: true}, "", err
	case c == ']':
		l.reader.ReadByte()
		return l.next()
	case c == '/':
		l.readName()
		return l.next()
	case isNumStart(c):
		n, err := l.readNumber()
		return Operand{Num: n, IsNum: true}, "", err
	case c == '\'' || c == '"':
		l.reader.ReadByte()
		return Operand{}, string(c), nil
	default:
		tok, err := l.readToken()
		if err != nil {
			return Operand{}, "", err
		}
		if tok == "" {
			// Unrecognized byte; consume it and move on.
			l.reader.ReadByte()
			return l.next()
		}
		return Operand{}, tok, nil
	}
}

func (l *Lexer) skipWhitespace() {
	for {
		b, err := l.reader.Peek(1)
		if err != nil || !isWhitespace(b[0]) {
			return
		}
		l.reader.ReadByte()
	}
}

func (l *Lexer) skipLine() {
	for {
		b, err := l.reader.ReadByte()
		if err != nil || b == '\n' || b == '\r' {
			return
		}
	}
}

func (l *Lexer) skipDict() error {
	depth := 0
	for {
		b, err := l.reader.ReadByte()
		if err != nil {
			return err
		}
		if b == '<' {
			peek, _ := l.reader.Peek(1)
			if len(peek) == 1 && peek[0] == '<' {
				l.reader.ReadByte()
				depth++
			}
		}
		if b == '>' {
			peek, _ := l.reader.Peek(1)
			if len(peek) == 1 && peek[0] == '>' {
				l.reader.ReadByte()
				depth--
				if depth == 0 {
					return nil
				}
			}
		}
	}
}

func (l *Lexer) readString() (string, error) {
	l.reader.ReadByte() // consume '('
	var sb strings.Builder
	depth := 1
	for {
		b, err := l.reader.ReadByte()
		if err != nil {
			return sb.String(), err
		}
		switch b {
		case '\\':
			esc, err := l.reader.ReadByte()
			if err != nil {
				return sb.String(), err
			}
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '(', ')', '\\':
				sb.WriteByte(esc)
			default:
				sb.WriteByte(esc)
			}
		case '(':
			depth++
			sb.WriteByte(b)
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), nil
			}
			sb.WriteByte(b)
		default:
			sb.WriteByte(b)
		}
	}
}

func (l *Lexer) readHexString() (string, error) {
	l.reader.ReadByte() // consume '<'
	var hexDigits []byte
	for {
		b, err := l.reader.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '>' {
			break
		}
		if isHexDigit(b) {
			hexDigits = append(hexDigits, b)
		}
	}
	if len(hexDigits)%2 == 1 {
		hexDigits = append(hexDigits, '0')
	}
	var sb strings.Builder
	for i := 0; i+1 < len(hexDigits); i += 2 {
		v, err := strconv.ParseInt(string(hexDigits[i:i+2]), 16, 32)
		if err != nil {
			continue
		}
		sb.WriteByte(byte(v))
	}
	return sb.String(), nil
}

func (l *Lexer) readArray() ([]Operand, error) {
	l.reader.ReadByte() // consume '['
	var out []Operand
	for {
		l.skipWhitespace()
		b, err := l.reader.Peek(1)
		if err != nil {
			return out, err
		}
		if b[0] == ']' {
			l.reader.ReadByte()
			return out, nil
		}
		operand, operator, err := l.next()
		if err != nil {
			return out, err
		}
		if operator != "" {
			return out, fmt.Errorf("unexpected operator %q inside array", operator)
		}
		out = append(out, operand)
	}
}

func (l *Lexer) readName() string {
	l.reader.ReadByte() // consume '/'
	var sb strings.Builder
	for {
		b, err := l.reader.Peek(1)
		if err != nil || isDelimiter(b[0]) || isWhitespace(b[0]) {
			return sb.String()
		}
		l.reader.ReadByte()
		sb.WriteByte(b[0])
	}
}

func (l *Lexer) readNumber() (float64, error) {
	var sb strings.Builder
	for {
		b, err := l.reader.Peek(1)
		if err != nil || !(isDigit(b[0]) || b[0] == '.' || b[0] == '-' || b[0] == '+') {
			break
		}
		l.reader.ReadByte()
		sb.WriteByte(b[0])
	}
	return strconv.ParseFloat(sb.String(), 64)
}

func (l *Lexer) readToken() (string, error) {
	var sb strings.Builder
	for {
		b, err := l.reader.Peek(1)
		if err != nil || !isRegular(b[0]) {
			break
		}
		l.reader.ReadByte()
		sb.WriteByte(b[0])
	}
	return sb.String(), nil
}

func isWhitespace(b byte) bool {
	switch b {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(b byte) bool {
	return !isWhitespace(b) && !isDelimiter(b)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isNumStart(b byte) bool {
	return isDigit(b) || b == '-' || b == '+' || b == '.'
}

func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
