package validation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bep/debounce"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/tomschdev/proto-lindt-ext/internal/lint"
	"github.com/tomschdev/proto-lindt-ext/internal/lintserver/defines"
	"github.com/tomschdev/proto-lindt-ext/internal/utils"
)

const (
	//Duration before validating after the user stops making edits.
	POST_EDIT_VALIDATION_DEBOUNCE_DURATION = 400 * time.Millisecond
)

type OrchestratorConfig struct {
	Linter    LinterRunner
	Enricher  SuggestionEnricher //optional
	Publisher DiagnosticPublisher
	Settings  *SettingsCache

	//Whether the client displays related diagnostic information.
	SupportsRelatedInfo bool

	//Policy for a failed linter invocation: true publishes an empty set,
	//false (default) leaves the previous diagnostics displayed.
	ClearOnLinterFailure bool

	//Defaults to POST_EDIT_VALIDATION_DEBOUNCE_DURATION.
	DebounceDuration time.Duration

	Logger zerolog.Logger
}

// Orchestrator owns one validator per open document. Validations of
// distinct documents are fully independent; within one document at most one
// pass may publish, and it is always the pass of the newest trigger.
type Orchestrator struct {
	config OrchestratorConfig

	ctx       context.Context
	cancelCtx context.CancelFunc

	lock       sync.Mutex
	validators map[defines.DocumentUri]*documentValidator
}

func NewOrchestrator(config OrchestratorConfig) *Orchestrator {
	if config.DebounceDuration <= 0 {
		config.DebounceDuration = POST_EDIT_VALIDATION_DEBOUNCE_DURATION
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		config:     config,
		ctx:        ctx,
		cancelCtx:  cancel,
		validators: make(map[defines.DocumentUri]*documentValidator),
	}
}

// TriggerValidation requests a validation pass for the document. Debounced
// triggers coalesce rapid edits; immediate triggers (open, save) skip the
// debounce window. $documentText is the current editor-side content, used
// for suggestion requests.
func (o *Orchestrator) TriggerValidation(docURI defines.DocumentUri, absFilePath string, documentText string, immediate bool) {
	validator := o.getCreateValidator(docURI, absFilePath)
	validator.setDocumentText(documentText)
	validator.trigger(immediate)
}

// CloseDocument forgets the document's validator and cached settings.
// Already published diagnostics are left to the client.
func (o *Orchestrator) CloseDocument(docURI defines.DocumentUri) {
	o.lock.Lock()
	validator, ok := o.validators[docURI]
	if ok {
		delete(o.validators, docURI)
	}
	o.lock.Unlock()

	if ok {
		validator.supersede()
	}
	o.config.Settings.Remove(string(docURI))
}

// AcknowledgeConfigurationChange clears the settings cache and revalidates
// every open document.
func (o *Orchestrator) AcknowledgeConfigurationChange() {
	o.config.Settings.InvalidateAll()

	o.lock.Lock()
	validators := make([]*documentValidator, 0, len(o.validators))
	for _, v := range o.validators {
		validators = append(validators, v)
	}
	o.lock.Unlock()

	for _, v := range validators {
		v.trigger(true)
	}
}

// Close cancels every in-flight pass. No publish happens afterwards.
func (o *Orchestrator) Close() {
	o.cancelCtx()

	o.lock.Lock()
	defer o.lock.Unlock()
	for uri, v := range o.validators {
		v.supersede()
		delete(o.validators, uri)
	}
}

func (o *Orchestrator) getCreateValidator(docURI defines.DocumentUri, absFilePath string) *documentValidator {
	o.lock.Lock()
	defer o.lock.Unlock()

	validator, ok := o.validators[docURI]
	if ok {
		return validator
	}

	validator = &documentValidator{
		orchestrator: o,
		docURI:       docURI,
		absFilePath:  absFilePath,
		debounced:    debounce.New(o.config.DebounceDuration),
		logger:       o.config.Logger.With().Str("document", string(docURI)).Logger(),
	}
	o.validators[docURI] = validator
	return validator
}

// documentValidator is the per-document state machine:
// Idle → Linting → Parsing → Enriching → Publishing → Idle, with an
// implicit Superseded transition whenever a newer trigger arrives.
// Last-trigger-wins is enforced with a trigger sequence number: a pass
// whose sequence is stale at publish time discards its results.
type documentValidator struct {
	orchestrator *Orchestrator
	docURI       defines.DocumentUri
	absFilePath  string
	debounced    func(f func())
	logger       zerolog.Logger

	triggerSeq atomic.Uint64

	lock         sync.Mutex
	documentText string
	cancelRun    context.CancelFunc //cancels the in-flight pass, nil when idle
}

func (v *documentValidator) setDocumentText(text string) {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.documentText = text
}

func (v *documentValidator) trigger(immediate bool) {
	seq := v.triggerSeq.Add(1)

	if immediate {
		go func() {
			defer utils.Recover()
			v.validate(seq)
		}()
		return
	}

	v.debounced(func() {
		defer utils.Recover()
		v.validate(seq)
	})
}

// supersede invalidates every in-flight and pending pass.
func (v *documentValidator) supersede() {
	v.triggerSeq.Add(1)

	v.lock.Lock()
	defer v.lock.Unlock()
	if v.cancelRun != nil {
		v.cancelRun()
		v.cancelRun = nil
	}
}

func (v *documentValidator) superseded(seq uint64) bool {
	return seq != v.triggerSeq.Load()
}

// registerRun cancels the previous in-flight pass of the document and
// installs $cancel as the current one. The staleness re-check under the lock
// matters: a stale pass must never cancel the run of a newer trigger.
func (v *documentValidator) registerRun(seq uint64, cancel context.CancelFunc) (documentText string, ok bool) {
	v.lock.Lock()
	defer v.lock.Unlock()

	if v.superseded(seq) {
		return "", false
	}

	if v.cancelRun != nil {
		v.cancelRun()
	}
	v.cancelRun = cancel
	return v.documentText, true
}

// validate performs one full pass: invoke linter → parse → enrich →
// synthesize → publish. The pass gives up silently as soon as it detects
// it has been superseded.
func (v *documentValidator) validate(seq uint64) {
	if v.superseded(seq) {
		return
	}

	config := v.orchestrator.config
	passId := ulid.Make().String()
	logger := v.logger.With().Str("pass", passId).Logger()

	ctx, cancel := context.WithCancel(v.orchestrator.ctx)
	defer cancel()

	documentText, ok := v.registerRun(seq, cancel)
	if !ok {
		return
	}

	//Linting.

	rawReport, err := config.Linter.Run(ctx, v.absFilePath)
	if err != nil {
		logger.Debug().Err(err).Msg("validation pass aborted: linter invocation failed")

		if config.ClearOnLinterFailure {
			v.publish(seq, ctx, []defines.Diagnostic{}, logger)
		}
		//Otherwise the previously published diagnostics stay displayed
		//until the next successful pass.
		return
	}

	//Parsing.

	fileReports := lint.ParseReport(rawReport)

	//Settings are read exactly once per pass, always through the cache.

	settings := config.Settings.Get(ctx, string(v.docURI))

	//Enriching.

	if config.Enricher != nil && !utils.IsContextDone(ctx) {
		v.enrich(ctx, logger, documentText, fileReports, settings.MaxProblems)
	}

	if v.superseded(seq) || utils.IsContextDone(ctx) {
		logger.Debug().Msg("validation pass superseded, results discarded")
		return
	}

	//Synthesizing.

	diagnostics := make([]defines.Diagnostic, 0)
	for _, report := range fileReports {
		diagnostics = append(diagnostics, utils.MapSlice(report.Findings, func(finding lint.Finding) defines.Diagnostic {
			return SynthesizeDiagnostic(finding, v.docURI, config.SupportsRelatedInfo)
		})...)
	}

	//Publishing.

	v.publish(seq, ctx, diagnostics, logger)
}

// enrich requests suggestions for the first $maxProblems findings,
// concurrently since findings are independent. Findings beyond the cap and
// findings whose request fails pass through without a suggestion.
func (v *documentValidator) enrich(ctx context.Context, logger zerolog.Logger, documentText string, fileReports []lint.FileReport, maxProblems int) {
	enricher := v.orchestrator.config.Enricher

	var wg sync.WaitGroup
	requested := 0

enrichment:
	for reportIndex := range fileReports {
		findings := fileReports[reportIndex].Findings

		for findingIndex := range findings {
			if requested >= maxProblems {
				break enrichment
			}
			requested++

			wg.Add(1)
			go func(finding *lint.Finding) {
				defer wg.Done()
				defer utils.Recover()

				suggestionText, err := enricher.SuggestFix(ctx, documentText, *finding)
				if err != nil {
					logger.Debug().Err(err).Str("ruleId", finding.RuleID).Msg("suggestion request failed")
					return
				}
				if suggestionText != "" {
					finding.Suggestion = suggestionText
				}
			}(&findings[findingIndex])
		}
	}

	wg.Wait()
}

// publish atomically replaces the document's diagnostic set, unless the
// pass has been superseded in the meantime.
func (v *documentValidator) publish(seq uint64, ctx context.Context, diagnostics []defines.Diagnostic, logger zerolog.Logger) {
	v.lock.Lock()
	defer v.lock.Unlock()

	if v.superseded(seq) || utils.IsContextDone(ctx) {
		logger.Debug().Msg("validation pass superseded, publish skipped")
		return
	}

	if err := v.orchestrator.config.Publisher.PublishDiagnostics(v.docURI, diagnostics); err != nil {
		logger.Error().Err(err).Msg("failed to publish diagnostics")
		return
	}
	logger.Debug().Int("count", len(diagnostics)).Msg("diagnostics published")
}
