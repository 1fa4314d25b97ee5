// Package server implements a language server for Lisp source files.
package server

import (
	"fmt"

	"github.com/arkanis/lisp.c/lisp"
	"github.com/arkanis/lisp.c/vm"
)

// vmRequest represents a unit of work to be executed on the runtime goroutine.
type vmRequest struct {
	fn   func(*lisp.Runtime) any
	done chan vmResult
}

// vmResult holds the return value from a runtime operation.
type vmResult struct {
	value any
	err   error
}

// VMWorker serializes all runtime access through a single goroutine.
// The runtime is single-threaded; every LSP handler must go through the
// worker to avoid data races.
type VMWorker struct {
	rt       *lisp.Runtime
	requests chan vmRequest
	quit     chan struct{}
}

// NewVMWorker creates a VMWorker and starts the processing goroutine.
func NewVMWorker(rt *lisp.Runtime) *VMWorker {
	w := &VMWorker{
		rt:       rt,
		requests: make(chan vmRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *VMWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the runtime, recovering from panics. A VM
// fault is returned as the error itself. Either way the operand stack is
// left empty so the next request starts from a balanced VM.
func (w *VMWorker) execute(fn func(*lisp.Runtime) any) vmResult {
	var result vmResult
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if depth := w.rt.VM.Depth(); depth != 0 {
				log.Debugf("dropping %d stack slots left by an aborted request", depth)
				w.rt.VM.Reset()
			}
			if fault, ok := r.(*vm.Fault); ok {
				result.err = fault
			} else {
				result.err = fmt.Errorf("%v", r)
			}
			log.Warningf("request failed: %s", result.err)
		}()
		result.value = fn(w.rt)
	}()
	return result
}

// Do submits a function for execution on the runtime goroutine and blocks
// until it completes. Returns the result and any error (including panics).
func (w *VMWorker) Do(fn func(*lisp.Runtime) any) (any, error) {
	req := vmRequest{
		fn:   fn,
		done: make(chan vmResult, 1),
	}
	w.requests <- req
	result := <-req.done
	return result.value, result.err
}

// Stop shuts down the worker goroutine.
func (w *VMWorker) Stop() {
	close(w.quit)
}
