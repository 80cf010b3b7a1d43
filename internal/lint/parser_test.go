package lint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const singleFindingReport = `
- file_path: a.proto
    problems:
      - message: field name must be snake_case
        location:
          start_position:
            line_number: 3
            column_number: 2
          end_position:
            line_number: 3
            column_number: 10
        rule_id: core::0122
        rule_doc_uri: https://google.aip.dev/122
`

func TestParseSingleFinding(t *testing.T) {
	reports := ParseReport(singleFindingReport)

	if !assert.Len(t, reports, 1) {
		return
	}
	assert.Equal(t, "a.proto", reports[0].FilePath)

	if !assert.Len(t, reports[0].Findings, 1) {
		return
	}
	assert.Equal(t, Finding{
		Message: "field name must be snake_case",
		Range: Range{
			Start: Position{Line: 3, Column: 2},
			End:   Position{Line: 3, Column: 10},
		},
		RuleID:     "core::0122",
		RuleDocURI: "https://google.aip.dev/122",
	}, reports[0].Findings[0])
}

func TestParseIsDeterministic(t *testing.T) {
	first := ParseReport(singleFindingReport)
	second := ParseReport(singleFindingReport)

	assert.Equal(t, first, second)
}

func TestParsePreservesCountAndOrder(t *testing.T) {
	raw := `
- file_path: b.proto
    problems:
      - message: first problem
        rule_id: core::0131
      - message: second problem
        rule_id: core::0132
      - message: second problem
        rule_id: core::0132
      - message: third problem
        rule_id: core::0133
`
	reports := ParseReport(raw)

	if !assert.Len(t, reports, 1) {
		return
	}
	findings := reports[0].Findings

	assert.Equal(t, strings.Count(raw, "- message:"), len(findings))
	assert.Equal(t, "first problem", findings[0].Message)
	assert.Equal(t, "second problem", findings[1].Message)
	//verbatim repeats are distinct findings, never deduplicated
	assert.Equal(t, findings[1], findings[2])
	assert.Equal(t, "third problem", findings[3].Message)
}

func TestParseMissingLocationDefaultsToZeroRange(t *testing.T) {
	raw := `
- file_path: c.proto
    problems:
      - message: no location here
        rule_id: core::0140
        rule_doc_uri: https://google.aip.dev/140
`
	reports := ParseReport(raw)

	if !assert.Len(t, reports, 1) || !assert.Len(t, reports[0].Findings, 1) {
		return
	}
	assert.Equal(t, Range{}, reports[0].Findings[0].Range)
	assert.Equal(t, "core::0140", reports[0].Findings[0].RuleID)
}

func TestParseGarbledLocationDefaultsToZeroRange(t *testing.T) {
	raw := `
- file_path: c.proto
    problems:
      - message: garbled location
        location:
          start_position:
            line_number: ???
            column_number: -4
          end_position:
        rule_id: core::0141
`
	reports := ParseReport(raw)

	if !assert.Len(t, reports, 1) || !assert.Len(t, reports[0].Findings, 1) {
		return
	}
	assert.Equal(t, Range{}, reports[0].Findings[0].Range)
}

func TestParseInvertedLocationDefaultsToZeroRange(t *testing.T) {
	raw := `
- file_path: c.proto
    problems:
      - message: inverted location
        location:
          start_position:
            line_number: 10
            column_number: 5
          end_position:
            line_number: 2
            column_number: 1
        rule_id: core::0142
`
	reports := ParseReport(raw)

	if !assert.Len(t, reports, 1) || !assert.Len(t, reports[0].Findings, 1) {
		return
	}
	assert.Equal(t, Range{}, reports[0].Findings[0].Range)
}

func TestParseMultipleFiles(t *testing.T) {
	raw := `
- file_path: a.proto
    problems:
      - message: problem in a
        rule_id: core::0122
- file_path: empty.proto
    problems:
- file_path: b.proto
    problems:
      - message: problem in b
        rule_id: core::0123
`
	reports := ParseReport(raw)

	if !assert.Len(t, reports, 3) {
		return
	}
	assert.Equal(t, "a.proto", reports[0].FilePath)
	assert.Len(t, reports[0].Findings, 1)

	//a header with zero problems still yields a report, with an empty
	//(non-nil) findings slice
	assert.Equal(t, "empty.proto", reports[1].FilePath)
	assert.NotNil(t, reports[1].Findings)
	assert.Len(t, reports[1].Findings, 0)

	assert.Equal(t, "b.proto", reports[2].FilePath)
	assert.Len(t, reports[2].Findings, 1)
}

func TestParseMultiLineMessage(t *testing.T) {
	raw := `
- file_path: d.proto
    problems:
      - message: this message continues
          over two more lines
          before the location block
        location:
          start_position:
            line_number: 1
            column_number: 0
          end_position:
            line_number: 1
            column_number: 4
        rule_id: core::0150
`
	reports := ParseReport(raw)

	if !assert.Len(t, reports, 1) || !assert.Len(t, reports[0].Findings, 1) {
		return
	}
	assert.Equal(t,
		"this message continues over two more lines before the location block",
		reports[0].Findings[0].Message)
}

func TestParseTrimsEmbeddedFragmentsFromMessage(t *testing.T) {
	raw := `
- file_path: e.proto
    problems:
      - message: the real message location: garbage
        rule_id: core::0151
      - message: another message suggestion: stray fragment
        rule_id: core::0152
`
	reports := ParseReport(raw)

	if !assert.Len(t, reports, 1) || !assert.Len(t, reports[0].Findings, 2) {
		return
	}
	assert.Equal(t, "the real message", reports[0].Findings[0].Message)
	assert.Equal(t, "another message", reports[0].Findings[1].Message)
}

func TestParseSuggestionLine(t *testing.T) {
	raw := `
- file_path: f.proto
    problems:
      - message: enum values should be UPPER_SNAKE_CASE
        suggestion: RENAMED_VALUE
        location:
          start_position:
            line_number: 7
            column_number: 2
          end_position:
            line_number: 7
            column_number: 14
        rule_id: core::0126
        rule_doc_uri: https://google.aip.dev/126
`
	reports := ParseReport(raw)

	if !assert.Len(t, reports, 1) || !assert.Len(t, reports[0].Findings, 1) {
		return
	}
	assert.Equal(t, "RENAMED_VALUE", reports[0].Findings[0].Suggestion)
	assert.Equal(t, "enum values should be UPPER_SNAKE_CASE", reports[0].Findings[0].Message)
}

func TestParseEmptyAndMalformedInputs(t *testing.T) {
	assert.Empty(t, ParseReport(""))
	assert.Empty(t, ParseReport("completely unrelated text\nwith several\nlines"))
	assert.Empty(t, ParseReport("problems:\n  - message: orphan problem without a file header"))
}
