package vm

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Sprint renders an atom as text.
func Sprint(a Atom) string {
	var b strings.Builder
	Print(&b, a)
	return b.String()
}

// Print writes the textual form of a to w.
func Print(w io.Writer, a Atom) {
	p := printer{w: w}
	p.atom(a)
}

type printer struct {
	w io.Writer
}

func (p printer) str(s string) {
	io.WriteString(p.w, s)
}

func (p printer) atom(a Atom) {
	switch v := a.(type) {
	case nil:
		p.str("<null>")
	case Num:
		p.str(strconv.FormatInt(int64(v), 10))
	case Sym:
		p.str(string(v))
	case Str:
		p.str(quoteString(string(v)))
	case *Singleton:
		switch v {
		case Nil:
			p.str("nil")
		case True:
			p.str("true")
		case False:
			p.str("false")
		}
	case *Pair:
		p.pair(v)
	case *Builtin:
		fmt.Fprintf(p.w, "#<builtin %s>", v.Name)
	case *Lambda:
		p.str("(lambda ")
		p.atom(v.Params)
		p.str(" ")
		p.atom(v.Body)
		p.str(")")
	case *CompiledLambda:
		fmt.Fprintf(p.w, "#<compiled-lambda args=%d vars=%d %s>", v.ArgCount, v.VarCount, v.Fingerprint().Short())
	case *RuntimeLambda:
		fmt.Fprintf(p.w, "#<runtime-lambda args=%d %s>", v.Compiled.ArgCount, v.Compiled.Fingerprint().Short())
	case *Env:
		fmt.Fprintf(p.w, "#<env %d bindings>", v.Len())
	case *Custom:
		fmt.Fprintf(p.w, "#<%s>", v.Tag)
	case *ContinuationState:
		fmt.Fprintf(p.w, "#<continuation fp=%d ip=%d>", v.FrameIndex, v.IP)
	default:
		fmt.Fprintf(p.w, "#<%T>", a)
	}
}

func (p printer) pair(v *Pair) {
	if v.First == Sym("quote") {
		if rest, ok := v.Rest.(*Pair); ok && rest.Rest == Nil {
			p.str("'")
			p.atom(rest.First)
			return
		}
	}

	p.str("(")
	p.atom(v.First)
	var cur Atom = v.Rest
	for {
		switch c := cur.(type) {
		case *Pair:
			p.str(" ")
			p.atom(c.First)
			cur = c.Rest
			continue
		case *Singleton:
			if c == Nil {
				p.str(")")
				return
			}
		}
		p.str(" . ")
		p.atom(cur)
		p.str(")")
		return
	}
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
