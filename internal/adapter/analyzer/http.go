package analyzer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"go.uber.org/zap"
)

// HTTP judges recitations through a self-hosted recitation service that
// speaks the same JSON result shape as the Gemini prompt.
type HTTP struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
}

var _ domain.AnalyzerPort = (*HTTP)(nil)

func NewHTTP(baseURL, apiKey string, logger *zap.Logger) *HTTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		// Deadlines come from the caller's context.
		httpClient: &http.Client{},
		log:        logger.Named("analyzer_http"),
	}
}

type analyzeRequest struct {
	Audio    string `json:"audio"`
	MimeType string `json:"mimeType"`
	Verse    string `json:"verse"`
	Language string `json:"language"`
}

// Analyze submits a recording for analysis
func (c *HTTP) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	body, err := json.Marshal(analyzeRequest{
		Audio:    base64.StdEncoding.EncodeToString(req.Audio.Data),
		MimeType: req.Audio.MimeType,
		Verse:    req.VerseText,
		Language: string(req.Language),
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	// Send request
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	c.log.Debug("analysis response",
		zap.String("recording_id", req.Audio.ID),
		zap.Int("status", resp.StatusCode),
	)

	result, err := decodeResult(string(respBody))
	if err != nil {
		return nil, fmt.Errorf("parse analysis: %w", err)
	}
	return result, nil
}
