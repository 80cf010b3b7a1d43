package validation

import (
	"context"

	"github.com/tomschdev/proto-lindt-ext/internal/lint"
	"github.com/tomschdev/proto-lindt-ext/internal/lintserver/defines"
)

// LinterRunner invokes the external linter for one file and returns its raw
// report text.
type LinterRunner interface {
	Run(ctx context.Context, absFilePath string) (string, error)
}

// SuggestionEnricher proposes a textual fix for one finding. Failures only
// omit that finding's suggestion.
type SuggestionEnricher interface {
	SuggestFix(ctx context.Context, documentText string, finding lint.Finding) (string, error)
}

// DiagnosticPublisher receives the full diagnostic set of a document after
// every successful validation pass (replacement semantics, never a patch).
type DiagnosticPublisher interface {
	PublishDiagnostics(docURI defines.DocumentUri, diagnostics []defines.Diagnostic) error
}
