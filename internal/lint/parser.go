package lint

import (
	"strconv"
	"strings"
)

// Markers recognized in the linter's report, in document order.
const (
	fileHeaderMarker    = "- file_path:"
	problemListMarker   = "problems:"
	messageMarker       = "- message:"
	suggestionMarker    = "suggestion:"
	locationMarker      = "location:"
	startPositionMarker = "start_position:"
	endPositionMarker   = "end_position:"
	lineNumberMarker    = "line_number:"
	columnNumberMarker  = "column_number:"
	ruleIDMarker        = "rule_id:"
	ruleDocURIMarker    = "rule_doc_uri:"
)

// ParseReport converts the linter's raw text report into a list of file
// reports. It is a total function: any input, including empty or malformed
// text, yields a (possibly empty) list. Parsing is a single line-scanning
// pass with an explicit cursor, no state is shared between calls.
func ParseReport(raw string) []FileReport {
	p := reportParser{}

	for _, line := range strings.Split(raw, "\n") {
		p.consumeLine(strings.TrimSpace(line))
	}
	p.flushFinding()
	p.flushReport()

	if p.reports == nil {
		return []FileReport{}
	}
	return p.reports
}

type reportParser struct {
	reports []FileReport
	report  *FileReport
	finding *Finding

	//Position the next line_number/column_number integers apply to,
	//nil outside a start_position/end_position block.
	locTarget *Position

	//True while subsequent non-marker lines continue the current message.
	inMessage bool
}

func (p *reportParser) consumeLine(line string) {
	if rest, ok := strings.CutPrefix(line, fileHeaderMarker); ok {
		p.flushFinding()
		p.flushReport()
		p.report = &FileReport{
			FilePath: strings.TrimSpace(rest),
			Findings: []Finding{},
		}
		return
	}

	if p.report == nil {
		//Text before the first file header is not part of any report.
		return
	}

	if rest, ok := strings.CutPrefix(line, messageMarker); ok {
		p.flushFinding()
		p.finding = &Finding{Message: strings.TrimSpace(rest)}
		p.inMessage = true
		p.locTarget = nil
		return
	}

	if p.finding == nil {
		return
	}

	switch {
	case strings.HasPrefix(line, suggestionMarker):
		p.finding.Suggestion = strings.TrimSpace(line[len(suggestionMarker):])
		p.endMessage()
	case strings.HasPrefix(line, locationMarker):
		p.endMessage()
	case strings.HasPrefix(line, startPositionMarker):
		p.locTarget = &p.finding.Range.Start
		p.endMessage()
	case strings.HasPrefix(line, endPositionMarker):
		p.locTarget = &p.finding.Range.End
		p.endMessage()
	case strings.HasPrefix(line, lineNumberMarker):
		if n, ok := parseNonNegativeInt(line[len(lineNumberMarker):]); ok && p.locTarget != nil {
			p.locTarget.Line = n
		}
		p.endMessage()
	case strings.HasPrefix(line, columnNumberMarker):
		if n, ok := parseNonNegativeInt(line[len(columnNumberMarker):]); ok && p.locTarget != nil {
			p.locTarget.Column = n
		}
		p.endMessage()
	case strings.HasPrefix(line, ruleIDMarker):
		p.finding.RuleID = strings.TrimSpace(line[len(ruleIDMarker):])
		p.endMessage()
	case strings.HasPrefix(line, ruleDocURIMarker):
		p.finding.RuleDocURI = strings.TrimSpace(line[len(ruleDocURIMarker):])
		p.endMessage()
	case strings.HasPrefix(line, problemListMarker):
		p.endMessage()
	default:
		if p.inMessage && line != "" {
			p.finding.Message += " " + line
		}
	}
}

func (p *reportParser) endMessage() {
	p.inMessage = false
}

// flushFinding finalizes the current finding, if any, and appends it to the
// current report. Count preservation holds because every recognized message
// marker creates exactly one finding and every finding is flushed exactly once.
func (p *reportParser) flushFinding() {
	if p.finding == nil {
		return
	}

	p.finding.Message = trimEmbeddedFragments(p.finding.Message)

	//A garbled location block must not fail the parse: fall back to an
	//empty range instead of keeping an inverted one.
	if p.finding.Range.End.Before(p.finding.Range.Start) {
		p.finding.Range = Range{}
	}

	if p.report != nil {
		p.report.Findings = append(p.report.Findings, *p.finding)
	}
	p.finding = nil
	p.locTarget = nil
	p.inMessage = false
}

func (p *reportParser) flushReport() {
	if p.report == nil {
		return
	}
	p.reports = append(p.reports, *p.report)
	p.report = nil
}

// trimEmbeddedFragments removes location/suggestion fragments that the raw
// text sometimes interleaves into the message itself.
func trimEmbeddedFragments(msg string) string {
	for _, marker := range []string{suggestionMarker, locationMarker} {
		if idx := strings.Index(msg, marker); idx >= 0 {
			msg = msg[:idx]
		}
	}
	return strings.TrimSpace(msg)
}

func parseNonNegativeInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
