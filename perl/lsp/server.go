// Package lsp serves heredoc diagnostics over the Language Server Protocol.
package lsp

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"

	"github.com/dhamidi/perlex/config"
	"github.com/dhamidi/perlex/perl/document"
	"github.com/dhamidi/perlex/perl/lexer"
)

const lsName = "perlex"

var log = commonlog.GetLogger("perlex.lsp")

type Server struct {
	cfg     *config.Config
	handler protocol.Handler
	server  *server.Server
	version string

	mu      sync.Mutex
	reports map[string]*document.Report
}

func NewServer(version string, cfg *config.Config) *Server {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	ls := &Server{
		cfg:     cfg,
		version: version,
		reports: make(map[string]*document.Report),
	}

	ls.handler = protocol.Handler{
		Initialize:            ls.initialize,
		Initialized:           ls.initialized,
		Shutdown:              ls.shutdown,
		SetTrace:              ls.setTrace,
		TextDocumentDidOpen:   ls.textDocumentDidOpen,
		TextDocumentDidChange: ls.textDocumentDidChange,
		TextDocumentDidClose:  ls.textDocumentDidClose,
		TextDocumentDidSave:   ls.textDocumentDidSave,
		TextDocumentHover:     ls.textDocumentHover,
	}

	ls.server = server.NewServer(&ls.handler, lsName, false)

	return ls
}

func (ls *Server) RunStdio() error {
	return ls.server.RunStdio()
}

func (ls *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := ls.handler.CreateServerCapabilities()

	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    syncKindPtr(protocol.TextDocumentSyncKindFull),
		Save: &protocol.SaveOptions{
			IncludeText: boolPtr(true),
		},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &ls.version,
		},
	}, nil
}

func (ls *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (ls *Server) shutdown(ctx *glsp.Context) error {
	return nil
}

func (ls *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (ls *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	report := ls.update(params.TextDocument.URI, params.TextDocument.Text)
	ls.publish(ctx, params.TextDocument.URI, report)
	return nil
}

func (ls *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	change := params.ContentChanges[len(params.ContentChanges)-1]
	textChange, ok := change.(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return nil
	}
	report := ls.update(params.TextDocument.URI, textChange.Text)
	ls.publish(ctx, params.TextDocument.URI, report)
	return nil
}

func (ls *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	ls.mu.Lock()
	delete(ls.reports, params.TextDocument.URI)
	ls.mu.Unlock()

	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (ls *Server) textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	if params.Text == nil {
		return nil
	}
	report := ls.update(params.TextDocument.URI, *params.Text)
	ls.publish(ctx, params.TextDocument.URI, report)
	return nil
}

func (ls *Server) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	ls.mu.Lock()
	report := ls.reports[params.TextDocument.URI]
	ls.mu.Unlock()
	if report == nil {
		return nil, nil
	}
	return Hover(report, params.Position), nil
}

// update analyzes text and remembers the report for uri.
func (ls *Server) update(uri, text string) *document.Report {
	opts := ls.cfg.DocumentOptions()
	if path, err := uriToPath(uri); err == nil {
		opts = append(opts, document.WithFile(path))
	}
	report := document.Analyze(text, opts...)

	ls.mu.Lock()
	ls.reports[uri] = report
	ls.mu.Unlock()
	return report
}

func (ls *Server) publish(ctx *glsp.Context, uri string, report *document.Report) {
	diags := Diagnostics(report)
	log.Debugf("publishing %d diagnostics for %s", len(diags), uri)
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	})
}

// Diagnostics converts the diagnostics of report to the protocol.
func Diagnostics(report *document.Report) []protocol.Diagnostic {
	result := make([]protocol.Diagnostic, 0, len(report.Diagnostics))
	source := lsName
	for _, d := range report.Diagnostics {
		severity := toProtocolSeverity(d.Severity)
		result = append(result, protocol.Diagnostic{
			Range: protocol.Range{
				Start: toProtocolPosition(report.Source, d.Start),
				End:   toProtocolPosition(report.Source, d.End),
			},
			Severity: &severity,
			Code:     &protocol.IntegerOrString{Value: d.Code},
			Source:   &source,
			Message:  d.Message,
		})
	}
	return result
}

// Hover describes the heredoc under pos, or returns nil.
func Hover(report *document.Report, pos protocol.Position) *protocol.Hover {
	offset := offsetAt(report.Source, pos)
	for _, d := range report.Declarations {
		if offset < d.Pos || offset >= d.End {
			continue
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "**heredoc** `%s`", d.Terminator)
		if d.Dynamic {
			fmt.Fprintf(&sb, " from `%s`", d.Expression)
		}
		if !d.Collected {
			sb.WriteString(" (unterminated)")
		}
		fmt.Fprintf(&sb, "\n\n```\n%s\n```", d.Content)

		r := protocol.Range{
			Start: toProtocolPosition(report.Source, lexer.PositionAt(report.Source, d.Pos)),
			End:   toProtocolPosition(report.Source, lexer.PositionAt(report.Source, d.End)),
		}
		return &protocol.Hover{
			Contents: protocol.MarkupContent{
				Kind:  protocol.MarkupKindMarkdown,
				Value: sb.String(),
			},
			Range: &r,
		}
	}
	return nil
}

func toProtocolSeverity(s document.Severity) protocol.DiagnosticSeverity {
	switch s {
	case document.SeverityError:
		return protocol.DiagnosticSeverityError
	case document.SeverityWarning:
		return protocol.DiagnosticSeverityWarning
	default:
		return protocol.DiagnosticSeverityInformation
	}
}

// toProtocolPosition counts the column in UTF-16 code units.
func toProtocolPosition(source string, p lexer.Position) protocol.Position {
	offset := max(0, min(p.Offset, len(source)))
	lineStart := strings.LastIndexByte(source[:offset], '\n') + 1
	character := 0
	for _, r := range source[lineStart:offset] {
		character += utf16.RuneLen(r)
	}
	return protocol.Position{
		Line:      protocol.UInteger(max(p.Line-1, 0)),
		Character: protocol.UInteger(character),
	}
}

// offsetAt is the inverse of toProtocolPosition. Positions past the end of
// a line clamp to its newline.
func offsetAt(source string, pos protocol.Position) int {
	offset := 0
	for line := protocol.UInteger(0); line < pos.Line; line++ {
		i := strings.IndexByte(source[offset:], '\n')
		if i < 0 {
			return len(source)
		}
		offset += i + 1
	}
	units := protocol.UInteger(0)
	for offset < len(source) && source[offset] != '\n' && units < pos.Character {
		r, size := utf8.DecodeRuneInString(source[offset:])
		units += protocol.UInteger(utf16.RuneLen(r))
		offset += size
	}
	return offset
}

func uriToPath(uri string) (string, error) {
	if strings.HasPrefix(uri, "file://") {
		parsed, err := url.Parse(uri)
		if err != nil {
			return "", err
		}
		return filepath.Clean(parsed.Path), nil
	}
	return uri, nil
}

func boolPtr(b bool) *bool {
	return &b
}

func syncKindPtr(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
