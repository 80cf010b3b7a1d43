package validation

import (
	"github.com/tomschdev/proto-lindt-ext/internal/lint"
	"github.com/tomschdev/proto-lindt-ext/internal/lintserver/defines"
)

const DIAGNOSTIC_SOURCE = "api-linter"

// SynthesizeDiagnostic maps one finding to its publishable diagnostic.
// The linter does not distinguish severities, every finding is a warning.
// When the client displays related information, up to two related entries
// are attached at the finding's own range: the suggestion (if present) and
// the rule id with its documentation URI.
func SynthesizeDiagnostic(finding lint.Finding, docURI defines.DocumentUri, supportsRelatedInfo bool) defines.Diagnostic {
	severity := defines.DiagnosticSeverityWarning
	source := DIAGNOSTIC_SOURCE

	diagnostic := defines.Diagnostic{
		Range:    toLspRange(finding.Range),
		Severity: &severity,
		Source:   &source,
		Message:  finding.Message,
	}

	if supportsRelatedInfo {
		location := defines.Location{
			Uri:   docURI,
			Range: diagnostic.Range,
		}

		related := []defines.DiagnosticRelatedInformation{}
		if finding.Suggestion != "" {
			related = append(related, defines.DiagnosticRelatedInformation{
				Location: location,
				Message:  finding.Suggestion,
			})
		}
		related = append(related, defines.DiagnosticRelatedInformation{
			Location: location,
			Message:  finding.RuleID + " : " + finding.RuleDocURI,
		})
		diagnostic.RelatedInformation = &related
	}

	return diagnostic
}

func toLspRange(r lint.Range) defines.Range {
	return defines.Range{
		Start: toLspPosition(r.Start),
		End:   toLspPosition(r.End),
	}
}

func toLspPosition(p lint.Position) defines.Position {
	return defines.Position{
		Line:      uint(max(p.Line, 0)),
		Character: uint(max(p.Column, 0)),
	}
}
