package lint

// Finding is one issue reported by the linter against one file.
// Suggestion is empty unless the raw report carried one or the
// enrichment step filled it in afterwards.
type Finding struct {
	Message    string
	Suggestion string
	Range      Range
	RuleID     string
	RuleDocURI string
}

// FileReport groups all findings of one analyzed file, in the order
// they appear in the raw report. The order is preserved end-to-end
// because diagnostic clients display it as-is.
type FileReport struct {
	FilePath string
	Findings []Finding
}
