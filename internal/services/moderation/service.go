package moderation

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/enums"
)

const signedURLTTL = 5 * time.Minute

type SafetyChecker interface {
	Configured() bool
	Check(ctx context.Context, text, imageURL, videoURL string) (*Verdict, []string, error)
}

type Adjudicator interface {
	Configured() bool
	Adjudicate(ctx context.Context, text, mediaRef string) (Verdict, error)
}

type URLSigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Config struct {
	CoerceFlaggedToRejected bool
}

// Service is the moderation orchestrator. It sequences the heuristic filter,
// the media safety classifier and the contextual arbiter, short-circuiting on
// the first decisive verdict. Provider failures are folded into diagnostics;
// Evaluate always returns a verdict and never panics past this boundary.
type Service struct {
	safety  SafetyChecker
	arbiter Adjudicator
	signer  URLSigner
	cfg     Config
	logger  *zap.Logger
}

type Input struct {
	Text     string
	ImageRef string
	VideoRef string
}

func NewService(safety SafetyChecker, arbiter Adjudicator, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		safety:  safety,
		arbiter: arbiter,
		cfg:     cfg,
		logger:  logger,
	}
}

// AttachSigner enables presigning of private object keys before they are
// handed to the media safety classifier.
func (s *Service) AttachSigner(signer URLSigner) {
	s.signer = signer
}

func (s *Service) Evaluate(ctx context.Context, in Input) Verdict {
	hasMedia := in.ImageRef != "" || in.VideoRef != ""

	switch ClassifyFast(in.Text, hasMedia) {
	case FastHarmful:
		return Rejected("spam_profanity", 1.0, "heuristic filter detected harmful content")
	case FastSafe:
		return Approved("safe", "heuristic filter detected safe motivational content")
	}

	var details []string

	imageURL := s.resolveImageRef(ctx, in.ImageRef, &details)

	if s.safety == nil || !s.safety.Configured() {
		details = append(details, "media safety classifier skipped: "+CodeMissingConfiguration)
	} else {
		verdict, notes, err := s.safety.Check(ctx, in.Text, imageURL, in.VideoRef)
		details = append(details, notes...)
		switch {
		case err != nil:
			details = append(details, "media safety classifier failed: "+err.Error())
			s.logger.Warn("media safety check failed", zap.Error(err))
		case verdict != nil:
			verdict.Details = append(details, verdict.Details...)
			return *verdict
		}
	}

	if s.arbiter == nil || !s.arbiter.Configured() {
		details = append(details, "arbiter skipped: "+CodeMissingConfiguration)
		return Flagged(CodeMissingConfiguration, 0.5, details...)
	}

	mediaRef := imageURL
	if mediaRef == "" {
		mediaRef = in.VideoRef
	}

	verdict, err := s.arbiter.Adjudicate(ctx, in.Text, mediaRef)
	if err != nil {
		code := CodeHTTPError
		var providerErr *ProviderError
		if errors.As(err, &providerErr) {
			code = providerErr.Code
		}
		details = append(details, "arbiter failed: "+err.Error())
		return Flagged("arbiter_"+code, 0.5, details...)
	}

	verdict.Details = append(details, verdict.Details...)
	return s.applyFlaggedPolicy(verdict)
}

// applyFlaggedPolicy is the explicit caution-bias step: when enabled, an
// ambiguous flagged verdict from the arbiter is coerced to rejected rather
// than waiting for human review.
func (s *Service) applyFlaggedPolicy(v Verdict) Verdict {
	if !s.cfg.CoerceFlaggedToRejected || v.Status != enums.ModerationStatusFlagged {
		return v
	}

	v.Status = enums.ModerationStatusRejected
	v.Details = append(v.Details, "flagged verdict coerced to rejected by policy")
	return v
}

// resolveImageRef turns a private object key into a short-lived signed URL
// the safety classifier can fetch. Full URLs pass through untouched.
func (s *Service) resolveImageRef(ctx context.Context, imageRef string, details *[]string) string {
	if imageRef == "" {
		return ""
	}
	if strings.Contains(imageRef, "://") {
		return imageRef
	}
	if s.signer == nil {
		*details = append(*details, "image ref is an object key but no url signer is configured")
		return ""
	}

	url, err := s.signer.PresignGet(ctx, imageRef, signedURLTTL)
	if err != nil {
		*details = append(*details, "sign image ref failed: "+err.Error())
		s.logger.Warn("presign image ref failed", zap.Error(err), zap.String("image_ref", imageRef))
		return ""
	}
	return url
}
