// Package lsp is a language server for procedure source files.
package lsp

import (
	"errors"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/procmachine/asm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "procmachine-lsp"

var log = commonlog.GetLogger("procmachine.lsp")

// Server answers editor requests from the open documents it tracks.
type Server struct {
	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// New creates a language server.
func New(version string) *Server {
	s := &Server{
		docs:    make(map[string]string),
		version: version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion:     s.textDocumentCompletion,
		TextDocumentHover:          s.textDocumentHover,
		TextDocumentDefinition:     s.textDocumentDefinition,
		TextDocumentDocumentSymbol: s.textDocumentDocumentSymbol,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)
	return s
}

// Run starts the server on stdio. Blocks until the client disconnects.
func (s *Server) Run() error {
	return s.server.RunStdio()
}

// --- Lifecycle ---

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{`"`},
	}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.DocumentSymbolProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// --- Document synchronization ---

func (s *Server) text(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
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

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
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

func (s *Server) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(text),
	})
}

// --- Language features ---

func (s *Server) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.text(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return complete(text, params.Position), nil
}

func (s *Server) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.text(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return hover(text, params.Position), nil
}

func (s *Server) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	text, ok := s.text(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	loc := definition(params.TextDocument.URI, text, params.Position)
	if loc == nil {
		return nil, nil
	}
	return loc, nil
}

func (s *Server) textDocumentDocumentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	text, ok := s.text(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return documentSymbols(text), nil
}

// --- Diagnostics ---

func diagnostics(text string) []protocol.Diagnostic {
	diags := []protocol.Diagnostic{}
	_, err := asm.Parse(text)
	if err == nil {
		return diags
	}
	var pe *asm.ParseError
	if !errors.As(err, &pe) {
		return diags
	}
	line := protocol.UInteger(pe.Line - 1)
	start := protocol.UInteger(pe.Col - 1)
	end := start + protocol.UInteger(tokenLength(lineAt(text, pe.Line-1), pe.Col-1))
	severity := protocol.DiagnosticSeverityError
	source := lspName
	return append(diags, protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: start},
			End:   protocol.Position{Line: line, Character: end},
		},
		Severity: &severity,
		Source:   &source,
		Message:  pe.Msg,
	})
}

func boolPtr(b bool) *bool {
	return &b
}
