// Package suggestion asks a remote service for a human-readable fix
// proposal for a single finding. Failures are always non-fatal: the
// finding is published without a suggestion.
package suggestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	backoff "gopkg.in/cenkalti/backoff.v1"

	"github.com/tomschdev/proto-lindt-ext/internal/lint"
	"github.com/tomschdev/proto-lindt-ext/internal/utils"
)

const (
	DEFAULT_REQUEST_TIMEOUT    = 10 * time.Second
	DEFAULT_MAX_RETRY_DURATION = 5 * time.Second
	MAX_RESPONSE_BODY_SIZE     = 1 << 20
	SUGGESTION_REQUEST_MIME    = "application/json"
)

// Statuses worth retrying, any other non-200 status aborts immediately.
var RETRYABLE_STATUS_CODES = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

type ServiceError struct {
	Cause error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("suggestion service: %s", e.Cause)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

type request struct {
	DocumentText     string      `json:"document_text"`
	FindingRangeText string      `json:"finding_range_text"`
	Finding          wireFinding `json:"finding"`
}

type wireFinding struct {
	Message    string    `json:"message"`
	Range      wireRange `json:"range"`
	RuleID     string    `json:"rule_id"`
	RuleDocURI string    `json:"rule_doc_uri"`
}

type wireRange struct {
	Start wirePosition `json:"start"`
	End   wirePosition `json:"end"`
}

type wirePosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type response struct {
	Suggestion string `json:"suggestion"`
}

type HTTPClient struct {
	//Endpoint of the remote suggestion service.
	Endpoint string

	//Optional bearer token.
	AuthToken string

	//Defaults to a client with DEFAULT_REQUEST_TIMEOUT.
	HTTPClient *http.Client

	//Cap on the total retry duration of one suggestion request,
	//defaults to DEFAULT_MAX_RETRY_DURATION.
	MaxRetryDuration time.Duration

	Logger zerolog.Logger
}

// SuggestFix requests a fix proposal for $finding. Transient failures are
// retried with exponential backoff until the context is done or the retry
// budget is exhausted.
func (c *HTTPClient) SuggestFix(ctx context.Context, documentText string, finding lint.Finding) (string, error) {
	if c.Endpoint == "" {
		return "", &ServiceError{Cause: fmt.Errorf("no endpoint configured")}
	}

	body, err := json.Marshal(request{
		DocumentText:     documentText,
		FindingRangeText: finding.Range.TextIn(documentText),
		Finding: wireFinding{
			Message: finding.Message,
			Range: wireRange{
				Start: wirePosition{Line: finding.Range.Start.Line, Column: finding.Range.Start.Column},
				End:   wirePosition{Line: finding.Range.End.Line, Column: finding.Range.End.Column},
			},
			RuleID:     finding.RuleID,
			RuleDocURI: finding.RuleDocURI,
		},
	})
	if err != nil {
		return "", &ServiceError{Cause: err}
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = 100 * time.Millisecond
	strategy.MaxElapsedTime = c.MaxRetryDuration
	if strategy.MaxElapsedTime <= 0 {
		strategy.MaxElapsedTime = DEFAULT_MAX_RETRY_DURATION
	}

	var suggestionText string
	var permanentErr error

	attempt := func() error {
		text, err := c.requestOnce(ctx, body)
		if err != nil {
			c.Logger.Debug().Err(err).Str("ruleId", finding.RuleID).Msg("suggestion request attempt failed")

			var statusErr *statusError
			if errors.As(err, &statusErr) && !utils.SliceContains(RETRYABLE_STATUS_CODES, statusErr.status) {
				//Retrying would yield the same rejection.
				permanentErr = err
				return nil
			}
			return err
		}
		suggestionText = text
		return nil
	}

	if err := backoff.Retry(attempt, backoff.WithContext(strategy, ctx)); err != nil {
		return "", &ServiceError{Cause: err}
	}
	if permanentErr != nil {
		return "", &ServiceError{Cause: permanentErr}
	}
	return suggestionText, nil
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}

func (c *HTTPClient) requestOnce(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", SUGGESTION_REQUEST_MIME)
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DEFAULT_REQUEST_TIMEOUT}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &statusError{status: resp.StatusCode}
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MAX_RESPONSE_BODY_SIZE))
	if err != nil {
		return "", err
	}

	var parsed response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", err
	}
	return parsed.Suggestion, nil
}
