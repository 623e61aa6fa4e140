package application

import (
	"context"
	"errors"
	"time"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/escalopa/quran-recite-feedback/internal/observe"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const (
	defaultAnalysisTimeout = 60 * time.Second

	// DefaultFallbackMessage is used when no translation is available.
	DefaultFallbackMessage = "দুঃখিত, বিশ্লেষণ করা সম্ভব হয়নি। আবার চেষ্টা করুন।"
)

// AnalysisClient wraps an analyzer so that every call produces a result.
// Failures of any kind turn into the localized fallback result.
type AnalysisClient struct {
	analyzer domain.AnalyzerPort
	i18n     domain.I18nPort
	timeout  time.Duration
	metrics  *observe.Metrics
	log      *zap.Logger
}

func NewAnalysisClient(analyzer domain.AnalyzerPort, i18n domain.I18nPort, timeout time.Duration, metrics *observe.Metrics, logger *zap.Logger) *AnalysisClient {
	if timeout <= 0 {
		timeout = defaultAnalysisTimeout
	}
	if metrics == nil {
		metrics = observe.NopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisClient{
		analyzer: analyzer,
		i18n:     i18n,
		timeout:  timeout,
		metrics:  metrics,
		log:      logger.Named("analysis"),
	}
}

type analysisOutcome struct {
	result *domain.AnalysisResult
	err    error
}

// Analyze judges payload against verseText. It returns within the
// configured timeout even if the analyzer does not honour cancellation.
func (c *AnalysisClient) Analyze(ctx context.Context, payload *domain.AudioPayload, verseText string, lang domain.Language) *domain.AnalysisResult {
	start := time.Now()

	if payload.Empty() {
		c.record(ctx, observe.OutcomeEmpty, start)
		return c.fallback(lang)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := domain.AnalysisRequest{
		Audio:     *payload,
		VerseText: verseText,
		Language:  lang,
	}

	done := make(chan analysisOutcome, 1)
	go func() {
		res, err := c.analyzer.Analyze(ctx, req)
		done <- analysisOutcome{result: res, err: err}
	}()

	var out analysisOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = ctx.Err()
	}

	logger := c.log.With(zap.String("recording_id", payload.ID))

	switch {
	case out.err == nil && out.result == nil:
		out.err = domain.ErrMalformedResult
		fallthrough
	case out.err != nil:
		outcome := classify(out.err)
		logger.Warn("analysis failed", zap.String("outcome", outcome), zap.Error(out.err))
		c.record(context.WithoutCancel(ctx), outcome, start)
		return c.fallback(lang)
	}

	result := out.result
	result.Fallback = false
	result.Normalize(verseText, c.statusText(lang))

	c.record(ctx, observe.OutcomeOK, start)
	logger.Info("analysis completed",
		zap.Int("score", result.Score),
		zap.Bool("correct", result.IsCorrect),
		zap.Int("words", len(result.Words)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result
}

func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return observe.OutcomeTimeout
	case errors.Is(err, domain.ErrMalformedResult):
		return observe.OutcomeMalformed
	default:
		return observe.OutcomeError
	}
}

func (c *AnalysisClient) record(ctx context.Context, outcome string, start time.Time) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	c.metrics.AnalysisRequests.Add(ctx, 1, attrs)
	c.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

func (c *AnalysisClient) fallback(lang domain.Language) *domain.AnalysisResult {
	msg := DefaultFallbackMessage
	if c.i18n != nil {
		if m := c.i18n.Get(lang, "analysis.fallback"); m != "" && m != "analysis.fallback" {
			msg = m
		}
	}
	return domain.FallbackResult(msg)
}

func (c *AnalysisClient) statusText(lang domain.Language) domain.StatusText {
	if c.i18n == nil {
		return nil
	}
	return domain.StatusText{
		domain.StatusCorrect:   c.i18n.Get(lang, "status.correct"),
		domain.StatusIncorrect: c.i18n.Get(lang, "status.incorrect"),
		domain.StatusMissing:   c.i18n.Get(lang, "status.missing"),
	}
}
