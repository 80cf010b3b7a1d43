package validation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/tomschdev/proto-lindt-ext/internal/lint"
	"github.com/tomschdev/proto-lindt-ext/internal/lintserver/defines"
)

const testReport = `
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

type linterFunc func(ctx context.Context, absFilePath string) (string, error)

func (f linterFunc) Run(ctx context.Context, absFilePath string) (string, error) {
	return f(ctx, absFilePath)
}

type enricherFunc func(ctx context.Context, documentText string, finding lint.Finding) (string, error)

func (f enricherFunc) SuggestFix(ctx context.Context, documentText string, finding lint.Finding) (string, error) {
	return f(ctx, documentText, finding)
}

type recordingPublisher struct {
	lock      sync.Mutex
	published [][]defines.Diagnostic
	signal    chan struct{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{signal: make(chan struct{}, 100)}
}

func (p *recordingPublisher) PublishDiagnostics(docURI defines.DocumentUri, diagnostics []defines.Diagnostic) error {
	p.lock.Lock()
	p.published = append(p.published, diagnostics)
	p.lock.Unlock()

	p.signal <- struct{}{}
	return nil
}

func (p *recordingPublisher) waitForPublish(t *testing.T) []defines.Diagnostic {
	t.Helper()

	select {
	case <-p.signal:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a publish")
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	return p.published[len(p.published)-1]
}

func (p *recordingPublisher) publishCount() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.published)
}

func newTestOrchestrator(config OrchestratorConfig) *Orchestrator {
	if config.Settings == nil {
		config.Settings = NewSettingsCache(DocumentSettings{MaxProblems: DEFAULT_MAX_PROBLEMS}, nil)
	}
	config.Logger = zerolog.Nop()
	return NewOrchestrator(config)
}

func TestValidationPublishesDiagnostics(t *testing.T) {
	publisher := newRecordingPublisher()

	orchestrator := newTestOrchestrator(OrchestratorConfig{
		Linter: linterFunc(func(ctx context.Context, absFilePath string) (string, error) {
			assert.Equal(t, "/tmp/a.proto", absFilePath)
			return testReport, nil
		}),
		Publisher:           publisher,
		SupportsRelatedInfo: true,
	})
	defer orchestrator.Close()

	orchestrator.TriggerValidation("file:///tmp/a.proto", "/tmp/a.proto", "", true)
	diagnostics := publisher.waitForPublish(t)

	if !assert.Len(t, diagnostics, 1) {
		return
	}
	diagnostic := diagnostics[0]

	assert.Equal(t, "field name must be snake_case", diagnostic.Message)
	assert.Equal(t, defines.DiagnosticSeverityWarning, *diagnostic.Severity)
	assert.Equal(t, defines.Range{
		Start: defines.Position{Line: 3, Character: 2},
		End:   defines.Position{Line: 3, Character: 10},
	}, diagnostic.Range)

	//no suggestion was available, a single related entry carries the rule
	if assert.NotNil(t, diagnostic.RelatedInformation) {
		related := *diagnostic.RelatedInformation
		if assert.Len(t, related, 1) {
			assert.Equal(t, "core::0122 : https://google.aip.dev/122", related[0].Message)
			assert.Equal(t, diagnostic.Range, related[0].Location.Range)
		}
	}
}

func TestLinterFailureLeavesPreviousDiagnostics(t *testing.T) {
	publisher := newRecordingPublisher()
	var fail atomic.Bool

	orchestrator := newTestOrchestrator(OrchestratorConfig{
		Linter: linterFunc(func(ctx context.Context, absFilePath string) (string, error) {
			if fail.Load() {
				return "", context.DeadlineExceeded
			}
			return testReport, nil
		}),
		Publisher: publisher,
	})
	defer orchestrator.Close()

	orchestrator.TriggerValidation("file:///tmp/a.proto", "/tmp/a.proto", "", true)
	publisher.waitForPublish(t)

	fail.Store(true)
	orchestrator.TriggerValidation("file:///tmp/a.proto", "/tmp/a.proto", "", true)
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, 1, publisher.publishCount())
}

func TestLinterFailureClearsDiagnosticsWhenConfigured(t *testing.T) {
	publisher := newRecordingPublisher()
	var fail atomic.Bool

	orchestrator := newTestOrchestrator(OrchestratorConfig{
		Linter: linterFunc(func(ctx context.Context, absFilePath string) (string, error) {
			if fail.Load() {
				return "", context.DeadlineExceeded
			}
			return testReport, nil
		}),
		Publisher:            publisher,
		ClearOnLinterFailure: true,
	})
	defer orchestrator.Close()

	orchestrator.TriggerValidation("file:///tmp/a.proto", "/tmp/a.proto", "", true)
	publisher.waitForPublish(t)

	fail.Store(true)
	orchestrator.TriggerValidation("file:///tmp/a.proto", "/tmp/a.proto", "", true)

	assert.Empty(t, publisher.waitForPublish(t))
}

const fiveFindingsReport = `
- file_path: a.proto
    problems:
      - message: problem one
        rule_id: core::0001
      - message: problem two
        rule_id: core::0002
      - message: problem three
        rule_id: core::0003
      - message: problem four
        rule_id: core::0004
      - message: problem five
        rule_id: core::0005
`

func TestEnrichmentCapIsRespected(t *testing.T) {
	publisher := newRecordingPublisher()
	var enrichmentRequests atomic.Int32

	orchestrator := newTestOrchestrator(OrchestratorConfig{
		Linter: linterFunc(func(ctx context.Context, absFilePath string) (string, error) {
			return fiveFindingsReport, nil
		}),
		Enricher: enricherFunc(func(ctx context.Context, documentText string, finding lint.Finding) (string, error) {
			enrichmentRequests.Add(1)
			return "fix for " + finding.RuleID, nil
		}),
		Publisher:           publisher,
		Settings:            NewSettingsCache(DocumentSettings{MaxProblems: 2}, nil),
		SupportsRelatedInfo: true,
	})
	defer orchestrator.Close()

	orchestrator.TriggerValidation("file:///tmp/a.proto", "/tmp/a.proto", "doc text", true)
	diagnostics := publisher.waitForPublish(t)

	//findings beyond the cap are still published, without enrichment
	assert.Equal(t, int32(2), enrichmentRequests.Load())
	if !assert.Len(t, diagnostics, 5) {
		return
	}

	//the first two findings carry a suggestion entry plus the rule entry
	assert.Len(t, *diagnostics[0].RelatedInformation, 2)
	assert.Equal(t, "fix for core::0001", (*diagnostics[0].RelatedInformation)[0].Message)
	assert.Len(t, *diagnostics[1].RelatedInformation, 2)

	for _, diagnostic := range diagnostics[2:] {
		assert.Len(t, *diagnostic.RelatedInformation, 1)
	}
}

func TestEnrichmentFailureOnlyOmitsSuggestion(t *testing.T) {
	publisher := newRecordingPublisher()

	orchestrator := newTestOrchestrator(OrchestratorConfig{
		Linter: linterFunc(func(ctx context.Context, absFilePath string) (string, error) {
			return testReport, nil
		}),
		Enricher: enricherFunc(func(ctx context.Context, documentText string, finding lint.Finding) (string, error) {
			return "", context.DeadlineExceeded
		}),
		Publisher:           publisher,
		SupportsRelatedInfo: true,
	})
	defer orchestrator.Close()

	orchestrator.TriggerValidation("file:///tmp/a.proto", "/tmp/a.proto", "", true)
	diagnostics := publisher.waitForPublish(t)

	if assert.Len(t, diagnostics, 1) {
		assert.Len(t, *diagnostics[0].RelatedInformation, 1)
	}
}

func TestSupersededRunIsDiscarded(t *testing.T) {
	publisher := newRecordingPublisher()

	firstRunStarted := make(chan struct{})
	releaseFirstRun := make(chan struct{})
	var calls atomic.Int32

	firstReport := `
- file_path: a.proto
    problems:
      - message: stale finding
        rule_id: core::0001
`
	secondReport := `
- file_path: a.proto
    problems:
      - message: fresh finding
        rule_id: core::0002
`

	orchestrator := newTestOrchestrator(OrchestratorConfig{
		Linter: linterFunc(func(ctx context.Context, absFilePath string) (string, error) {
			if calls.Add(1) == 1 {
				close(firstRunStarted)
				//simulate a slow linter run that finishes after the
				//second trigger's run
				<-releaseFirstRun
				return firstReport, nil
			}
			return secondReport, nil
		}),
		Publisher: publisher,
	})
	defer orchestrator.Close()

	uri := defines.DocumentUri("file:///tmp/a.proto")

	orchestrator.TriggerValidation(uri, "/tmp/a.proto", "", true)
	<-firstRunStarted

	orchestrator.TriggerValidation(uri, "/tmp/a.proto", "", true)
	diagnostics := publisher.waitForPublish(t)
	assert.Equal(t, "fresh finding", diagnostics[0].Message)

	//let the first (superseded) run finish, its results must be discarded
	close(releaseFirstRun)
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, 1, publisher.publishCount())
}

func TestStalePassCannotCancelNewerRun(t *testing.T) {
	orchestrator := newTestOrchestrator(OrchestratorConfig{
		Linter: linterFunc(func(ctx context.Context, absFilePath string) (string, error) {
			return testReport, nil
		}),
		Publisher: newRecordingPublisher(),
	})
	defer orchestrator.Close()

	validator := orchestrator.getCreateValidator("file:///tmp/a.proto", "/tmp/a.proto")

	//Two triggers whose passes race to register: the newer one wins the
	//race, the stale one reaches registration afterwards.
	staleSeq := validator.triggerSeq.Add(1)
	newestSeq := validator.triggerSeq.Add(1)

	newestCtx, cancelNewest := context.WithCancel(context.Background())
	defer cancelNewest()
	_, ok := validator.registerRun(newestSeq, cancelNewest)
	assert.True(t, ok)

	staleCancelled := false
	_, ok = validator.registerRun(staleSeq, func() { staleCancelled = true })
	assert.False(t, ok)
	assert.False(t, staleCancelled)

	//the newest pass must still be running
	select {
	case <-newestCtx.Done():
		t.Fatal("the stale pass cancelled the newest pass")
	default:
	}
}

func TestRapidEditsAreDebounced(t *testing.T) {
	publisher := newRecordingPublisher()
	var calls atomic.Int32

	orchestrator := newTestOrchestrator(OrchestratorConfig{
		Linter: linterFunc(func(ctx context.Context, absFilePath string) (string, error) {
			calls.Add(1)
			return testReport, nil
		}),
		Publisher:        publisher,
		DebounceDuration: 50 * time.Millisecond,
	})
	defer orchestrator.Close()

	for i := 0; i < 5; i++ {
		orchestrator.TriggerValidation("file:///tmp/a.proto", "/tmp/a.proto", "", false)
	}
	publisher.waitForPublish(t)
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, publisher.publishCount())
}

func TestConfigurationChangeRevalidatesOpenDocuments(t *testing.T) {
	publisher := newRecordingPublisher()
	var fetches atomic.Int32

	settings := NewSettingsCache(DocumentSettings{MaxProblems: DEFAULT_MAX_PROBLEMS},
		func(ctx context.Context, documentKey string) (DocumentSettings, error) {
			fetches.Add(1)
			return DocumentSettings{MaxProblems: 10}, nil
		})

	orchestrator := newTestOrchestrator(OrchestratorConfig{
		Linter: linterFunc(func(ctx context.Context, absFilePath string) (string, error) {
			return testReport, nil
		}),
		Publisher: publisher,
		Settings:  settings,
	})
	defer orchestrator.Close()

	orchestrator.TriggerValidation("file:///tmp/a.proto", "/tmp/a.proto", "", true)
	publisher.waitForPublish(t)
	assert.Equal(t, int32(1), fetches.Load())

	orchestrator.AcknowledgeConfigurationChange()
	publisher.waitForPublish(t)

	//the cache was cleared, so the settings were fetched again
	assert.Equal(t, int32(2), fetches.Load())
}

func TestDistinctDocumentsValidateIndependently(t *testing.T) {
	publisher := newRecordingPublisher()

	orchestrator := newTestOrchestrator(OrchestratorConfig{
		Linter: linterFunc(func(ctx context.Context, absFilePath string) (string, error) {
			return testReport, nil
		}),
		Publisher: publisher,
	})
	defer orchestrator.Close()

	orchestrator.TriggerValidation("file:///tmp/a.proto", "/tmp/a.proto", "", true)
	orchestrator.TriggerValidation("file:///tmp/b.proto", "/tmp/b.proto", "", true)

	publisher.waitForPublish(t)
	publisher.waitForPublish(t)
	assert.Equal(t, 2, publisher.publishCount())
}
