// Package diag reports recoverable language-level problems.
//
// A diagnostic is a warning: the caller substitutes nil for the failed
// result and evaluation continues. Every diagnostic is logged through
// commonlog and delivered to any active collectors.
package diag

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("lisp")

// Diagnostic is a single recoverable problem.
type Diagnostic struct {
	Source  string // reporting component, e.g. "compiler", "vm", "eval"
	Message string
}

func (d Diagnostic) String() string {
	return d.Source + ": " + d.Message
}

var (
	mu         sync.Mutex
	collectors []*[]Diagnostic
	count      atomic.Int64
)

// Warnf reports a diagnostic from the named source.
func Warnf(source, format string, args ...any) {
	d := Diagnostic{Source: source, Message: fmt.Sprintf(format, args...)}
	count.Add(1)
	log.Warningf("%s", d)

	mu.Lock()
	for _, c := range collectors {
		*c = append(*c, d)
	}
	mu.Unlock()
}

// Collect runs fn and returns the diagnostics reported while it ran.
// Collectors nest: an outer collector also sees the diagnostics of an
// inner one.
func Collect(fn func()) []Diagnostic {
	var got []Diagnostic

	mu.Lock()
	collectors = append(collectors, &got)
	mu.Unlock()

	defer func() {
		mu.Lock()
		for i := len(collectors) - 1; i >= 0; i-- {
			if collectors[i] == &got {
				collectors = append(collectors[:i], collectors[i+1:]...)
				break
			}
		}
		mu.Unlock()
	}()

	fn()
	return got
}

// Count returns the number of diagnostics reported since process start.
func Count() int64 {
	return count.Load()
}
