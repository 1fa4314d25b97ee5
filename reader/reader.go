// Package reader turns source text into atoms.
package reader

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/arkanis/lisp.c/vm"
)

// ErrIncomplete reports input that ends inside a list, string or quote.
// More input may complete it.
var ErrIncomplete = errors.New("incomplete input")

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Error is a read error at a source position.
type Error struct {
	Pos        Pos
	Msg        string
	incomplete bool
}

func (e *Error) Error() string {
	return e.Pos.String() + ": " + e.Msg
}

// Unwrap returns ErrIncomplete for errors caused by truncated input.
func (e *Error) Unwrap() error {
	if e.incomplete {
		return ErrIncomplete
	}
	return nil
}

// Form is a top-level atom together with the position it starts at.
type Form struct {
	Atom vm.Atom
	Pos  Pos
}

// Reader reads atoms from source text.
type Reader struct {
	src  []rune
	pos  int
	line int
	col  int
}

// New creates a reader over src.
func New(src string) *Reader {
	return &Reader{src: []rune(src), line: 1, col: 1}
}

// SkipHashBang skips a leading "#!" line.
func (r *Reader) SkipHashBang() {
	if r.pos == 0 && len(r.src) >= 2 && r.src[0] == '#' && r.src[1] == '!' {
		for !r.eof() && r.peek() != '\n' {
			r.next()
		}
	}
}

// Read returns the next top-level atom, or io.EOF when only whitespace
// and comments remain.
func (r *Reader) Read() (vm.Atom, error) {
	f, err := r.ReadForm()
	return f.Atom, err
}

// ReadForm returns the next top-level atom with its position.
func (r *Reader) ReadForm() (Form, error) {
	r.skipSpace()
	if r.eof() {
		return Form{}, io.EOF
	}
	start := r.here()
	a, err := r.datum()
	if err != nil {
		return Form{}, err
	}
	return Form{Atom: a, Pos: start}, nil
}

// ReadAll reads every form of src.
func ReadAll(src string) ([]Form, error) {
	r := New(src)
	r.SkipHashBang()
	var forms []Form
	for {
		f, err := r.ReadForm()
		if err == io.EOF {
			return forms, nil
		}
		if err != nil {
			return forms, err
		}
		forms = append(forms, f)
	}
}

// ReadString reads exactly one form from src.
func ReadString(src string) (vm.Atom, error) {
	r := New(src)
	a, err := r.Read()
	if err != nil {
		return nil, err
	}
	r.skipSpace()
	if !r.eof() {
		return nil, r.errorf("unexpected input after form")
	}
	return a, nil
}

// ---------------------------------------------------------------------------
// Scanning
// ---------------------------------------------------------------------------

func (r *Reader) eof() bool { return r.pos >= len(r.src) }

func (r *Reader) peek() rune { return r.src[r.pos] }

func (r *Reader) here() Pos { return Pos{Line: r.line, Col: r.col} }

func (r *Reader) next() rune {
	c := r.src[r.pos]
	r.pos++
	if c == '\n' {
		r.line++
		r.col = 1
	} else {
		r.col++
	}
	return c
}

func (r *Reader) errorf(format string, args ...any) *Error {
	return &Error{Pos: r.here(), Msg: fmt.Sprintf(format, args...)}
}

func (r *Reader) incompletef(start Pos, format string, args ...any) *Error {
	return &Error{Pos: start, Msg: fmt.Sprintf(format, args...), incomplete: true}
}

func (r *Reader) skipSpace() {
	for !r.eof() {
		switch c := r.peek(); {
		case c == ';':
			for !r.eof() && r.peek() != '\n' {
				r.next()
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			r.next()
		default:
			return
		}
	}
}

func isDelimiter(c rune) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '"', ';', '\'':
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

func (r *Reader) datum() (vm.Atom, error) {
	start := r.here()
	switch r.peek() {
	case '(':
		r.next()
		return r.list(start)
	case ')':
		return nil, r.errorf("unexpected )")
	case '\'':
		r.next()
		r.skipSpace()
		if r.eof() {
			return nil, r.incompletef(start, "quote without a form")
		}
		quoted, err := r.datum()
		if err != nil {
			return nil, err
		}
		return vm.List(vm.Sym("quote"), quoted), nil
	case '"':
		r.next()
		return r.str(start)
	}
	return r.token()
}

func (r *Reader) list(start Pos) (vm.Atom, error) {
	var items []vm.Atom
	var tail vm.Atom = vm.Nil
	for {
		r.skipSpace()
		if r.eof() {
			return nil, r.incompletef(start, "unterminated list")
		}
		if r.peek() == ')' {
			r.next()
			break
		}
		if r.isDot() {
			if len(items) == 0 {
				return nil, r.errorf("dot without a preceding form")
			}
			r.next()
			r.skipSpace()
			if r.eof() {
				return nil, r.incompletef(start, "unterminated list")
			}
			rest, err := r.datum()
			if err != nil {
				return nil, err
			}
			tail = rest
			r.skipSpace()
			if r.eof() {
				return nil, r.incompletef(start, "unterminated list")
			}
			if r.peek() != ')' {
				return nil, r.errorf("expected ) after dotted tail")
			}
			r.next()
			break
		}
		item, err := r.datum()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	result := tail
	for i := len(items) - 1; i >= 0; i-- {
		result = vm.Cons(items[i], result)
	}
	return result, nil
}

func (r *Reader) isDot() bool {
	if r.peek() != '.' {
		return false
	}
	return r.pos+1 >= len(r.src) || isDelimiter(r.src[r.pos+1])
}

func (r *Reader) str(start Pos) (vm.Atom, error) {
	var b strings.Builder
	for {
		if r.eof() {
			return nil, r.incompletef(start, "unterminated string")
		}
		c := r.next()
		switch c {
		case '"':
			return vm.Str(b.String()), nil
		case '\\':
			if r.eof() {
				return nil, r.incompletef(start, "unterminated string")
			}
			switch e := r.next(); e {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case '"', '\\':
				b.WriteRune(e)
			default:
				b.WriteRune('\\')
				b.WriteRune(e)
			}
		default:
			b.WriteRune(c)
		}
	}
}

func (r *Reader) token() (vm.Atom, error) {
	start := r.here()
	from := r.pos
	for !r.eof() && !isDelimiter(r.peek()) {
		r.next()
	}
	text := string(r.src[from:r.pos])

	switch text {
	case "nil":
		return vm.Nil, nil
	case "true":
		return vm.True, nil
	case "false":
		return vm.False, nil
	}

	if isInteger(text) {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, &Error{Pos: start, Msg: fmt.Sprintf("number %s out of range", text)}
		}
		return vm.Num(n), nil
	}
	return vm.Sym(text), nil
}

func isInteger(s string) bool {
	if s[0] == '-' || s[0] == '+' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
