package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/enums"
)

const arbiterProvider = "arbiter"

type ArbiterConfig struct {
	Endpoint    string
	APIKey      string
	Model       string
	MaxAttempts int
	RetryDelay  time.Duration
}

// ArbiterClient consults the generative contextual arbiter. It is the last
// pipeline stage and is only invoked when heuristics and the media safety
// classifier were inconclusive.
type ArbiterClient struct {
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	model       string
	maxAttempts int
	retryDelay  time.Duration
	logger      *zap.Logger
}

func NewArbiterClient(httpClient *http.Client, cfg ArbiterConfig, logger *zap.Logger) *ArbiterClient {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ArbiterClient{
		httpClient:  httpClient,
		endpoint:    cfg.Endpoint,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		logger:      logger,
	}
}

func (c *ArbiterClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

type arbiterRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
}

type arbiterResponse struct {
	Candidates []struct {
		Text string `json:"text"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"block_reason"`
	} `json:"prompt_feedback,omitempty"`
}

type arbiterAssessment struct {
	Status   string  `json:"status"`
	Score    float64 `json:"score"`
	Category string  `json:"category"`
	Reason   string  `json:"reason"`
}

// Adjudicate asks the arbiter for a safety assessment. Rate limiting (HTTP
// 429), transient server errors and empty candidate lists are retried a small
// fixed number of times with a constant short delay; every attempt shares one
// logical request id for audit purposes. An error return means the orchestrator
// falls back to a flagged verdict; Adjudicate never panics or blocks without a
// deadline.
func (c *ArbiterClient) Adjudicate(ctx context.Context, text, mediaRef string) (Verdict, error) {
	requestID := uuid.NewString()
	prompt := buildArbiterPrompt(text, mediaRef)

	var verdict Verdict
	operation := func() error {
		v, err := c.adjudicateOnce(ctx, prompt, requestID)
		if err != nil {
			return err
		}
		verdict = v
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), uint64(c.maxAttempts-1)),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		c.logger.Warn("arbiter adjudication failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return Verdict{}, err
	}

	verdict.Details = append(verdict.Details, "request_id="+requestID)
	return verdict, nil
}

func (c *ArbiterClient) adjudicateOnce(ctx context.Context, prompt, requestID string) (Verdict, error) {
	body, err := json.Marshal(arbiterRequest{Model: c.model, Prompt: prompt})
	if err != nil {
		return Verdict{}, backoff.Permanent(newProviderError(arbiterProvider, CodeParseError, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, backoff.Permanent(newProviderError(arbiterProvider, CodeHTTPError, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Verdict{}, backoff.Permanent(classifyTransportError(arbiterProvider, err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Verdict{}, newProviderError(arbiterProvider, CodeHTTPError, fmt.Errorf("rate limited"))
	case resp.StatusCode >= http.StatusInternalServerError:
		return Verdict{}, newProviderError(arbiterProvider, CodeHTTPError, fmt.Errorf("unexpected status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return Verdict{}, backoff.Permanent(newProviderError(arbiterProvider, CodeHTTPError, fmt.Errorf("unexpected status %d", resp.StatusCode)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Verdict{}, backoff.Permanent(classifyTransportError(arbiterProvider, err))
	}

	var parsed arbiterResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Verdict{}, backoff.Permanent(newProviderError(arbiterProvider, CodeParseError, err))
	}

	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		// The provider's own safety filter refused the content outright.
		return Rejected("safety_block", 1.0, "blocked by provider safety filters: "+parsed.PromptFeedback.BlockReason), nil
	}

	if len(parsed.Candidates) == 0 {
		return Verdict{}, newProviderError(arbiterProvider, CodeParseError, fmt.Errorf("no candidates returned"))
	}

	assessment, err := parseAssessment(parsed.Candidates[0].Text)
	if err != nil {
		return Verdict{}, newProviderError(arbiterProvider, CodeParseError, err)
	}

	return assessmentToVerdict(assessment), nil
}

// parseAssessment pulls the embedded JSON object out of the arbiter's
// free-text answer. Fenced blocks and surrounding prose are both tolerated.
func parseAssessment(raw string) (arbiterAssessment, error) {
	cleaned := strings.TrimSpace(raw)
	if idx := strings.Index(cleaned, "```json"); idx >= 0 {
		cleaned = cleaned[idx+len("```json"):]
		if end := strings.Index(cleaned, "```"); end >= 0 {
			cleaned = cleaned[:end]
		}
	} else if idx := strings.Index(cleaned, "```"); idx >= 0 {
		cleaned = cleaned[idx+len("```"):]
		if end := strings.Index(cleaned, "```"); end >= 0 {
			cleaned = cleaned[:end]
		}
	}
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return arbiterAssessment{}, fmt.Errorf("no JSON object in arbiter response")
	}

	var assessment arbiterAssessment
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &assessment); err != nil {
		return arbiterAssessment{}, fmt.Errorf("decode arbiter assessment: %w", err)
	}

	return assessment, nil
}

// assessmentToVerdict validates and coerces the arbiter's answer into one of
// the three canonical states. Anything unrecognized is treated as flagged.
func assessmentToVerdict(a arbiterAssessment) Verdict {
	score := a.Score
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	category := strings.TrimSpace(a.Category)
	if category == "" {
		category = "unclassified"
	}

	details := []string{}
	if strings.TrimSpace(a.Reason) != "" {
		details = append(details, a.Reason)
	}

	switch enums.ModerationStatus(strings.ToLower(strings.TrimSpace(a.Status))) {
	case enums.ModerationStatusApproved:
		return Verdict{
			Status:   enums.ModerationStatusApproved,
			Score:    score,
			Category: category,
			Source:   enums.ModerationSourceAI,
			Details:  details,
		}
	case enums.ModerationStatusRejected:
		return Rejected(category, score, details...)
	case enums.ModerationStatusFlagged:
		return Flagged(category, score, details...)
	default:
		details = append(details, "unrecognized arbiter status "+fmt.Sprintf("%q", a.Status))
		return Flagged(category, score, details...)
	}
}

func buildArbiterPrompt(text, mediaRef string) string {
	var b strings.Builder
	b.WriteString("Analyze the following content for a community-driven mindfulness app.\n")
	b.WriteString(fmt.Sprintf("Content text: %q\n", text))
	if mediaRef != "" {
		b.WriteString("Media URL: " + mediaRef + "\n")
	}
	b.WriteString(`
Provide a safety assessment as a JSON object with:
- status: "approved" (safe), "rejected" (unsafe/harmful), or "flagged" (ambiguous)
- score: 0.0 (safe) to 1.0 (unsafe)
- category: one word (e.g. hate, violence, sexual, spam, safe, controversial)
- reason: brief explanation

Rules:
- Approve motivational, peaceful, and community-friendly content.
- Reject nudity, extreme violence, hate speech, or obvious scams.
- Flag if you are uncertain but it seems slightly controversial.
`)
	return b.String()
}
