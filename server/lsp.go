package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/arkanis/lisp.c/compiler"
	"github.com/arkanis/lisp.c/diag"
	"github.com/arkanis/lisp.c/lisp"
	"github.com/arkanis/lisp.c/reader"
	"github.com/arkanis/lisp.c/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "lisp-lsp"

var log = commonlog.GetLogger("lisp.lsp")

// LspServer bridges LSP editor features to a Lisp runtime via VMWorker.
type LspServer struct {
	worker *VMWorker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server wrapping the given runtime.
func NewLSP(rt *lisp.Runtime) *LspServer {
	s := &LspServer{
		worker:  NewVMWorker(rt),
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"("},
	}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	log.Info("shutting down")
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}

	return s.worker.Do(func(rt *lisp.Runtime) any {
		return complete(rt, prefix)
	})
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	result, err := s.worker.Do(func(rt *lisp.Runtime) any {
		return hover(rt, word)
	})
	if err != nil || result == nil {
		return nil, nil
	}
	return result.(*protocol.Hover), nil
}

// --- Runtime-backed logic (called on worker goroutine) ---

func complete(rt *lisp.Runtime, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	for _, name := range rt.Names() {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		value, _ := rt.Lookup(name)

		kind := protocol.CompletionItemKindVariable
		switch value.(type) {
		case *vm.Builtin:
			kind = protocol.CompletionItemKindKeyword
		case *vm.Lambda, *vm.RuntimeLambda:
			kind = protocol.CompletionItemKindFunction
		}
		detail := lisp.Describe(value)
		nameCopy := name
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &nameCopy,
		})
	}

	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func hover(rt *lisp.Runtime, word string) *protocol.Hover {
	value, ok := rt.Lookup(word)
	if !ok {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%s)\n\n", word, lisp.Describe(value))
	fmt.Fprintf(&b, "```lisp\n%s\n```", vm.Sprint(value))

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// analyze reads and compiles text without running it. Read errors are
// reported as errors, compiler diagnostics as warnings at the start of
// the form that produced them.
func analyze(rt *lisp.Runtime, text string) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic

	forms, err := reader.ReadAll(text)

	// Globals defined earlier in the document are visible to later forms.
	scratch := vm.NewEnv(rt.Env)
	for _, form := range forms {
		found := diag.Collect(func() {
			unit := compiler.CompileUnit(form.Atom, scratch)
			for _, name := range unit.Globals {
				scratch.Define(name, vm.Nil)
			}
		})
		for _, d := range found {
			diagnostics = append(diagnostics, newDiagnostic(form.Pos, protocol.DiagnosticSeverityWarning, d.Message))
		}
	}

	if err != nil {
		var rerr *reader.Error
		pos := reader.Pos{Line: 1, Col: 1}
		msg := err.Error()
		if errors.As(err, &rerr) {
			pos = rerr.Pos
			msg = rerr.Msg
		}
		diagnostics = append(diagnostics, newDiagnostic(pos, protocol.DiagnosticSeverityError, msg))
	}

	return diagnostics
}

func newDiagnostic(pos reader.Pos, severity protocol.DiagnosticSeverity, msg string) protocol.Diagnostic {
	source := lspName
	at := protocol.Position{Line: uint32(pos.Line - 1), Character: uint32(pos.Col - 1)}
	return protocol.Diagnostic{
		Range:    protocol.Range{Start: at, End: at},
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(func(rt *lisp.Runtime) any {
		return analyze(rt, text)
	})
	if err != nil {
		log.Errorf("analyzing %s: %s", uri, err)
		return
	}

	diagnostics := result.([]protocol.Diagnostic)
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// --- Text extraction helpers ---

// isIdentChar reports whether ch can be part of a symbol.
func isIdentChar(ch rune) bool {
	if unicode.IsSpace(ch) {
		return false
	}
	switch ch {
	case '(', ')', '\'', '"', ';':
		return false
	}
	return true
}

// extractPrefix returns the symbol fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the symbol
	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}

	return line[start:col]
}

// extractWord returns the full symbol under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdentChar(rune(line[end])) {
		end++
	}

	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
