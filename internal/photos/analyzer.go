package photos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoAnalyzer is returned by Service.Analyze when no Analyzer is configured.
var ErrNoAnalyzer = errors.New("photos: no analyzer configured")

// AnalysisRequest is the input of a photo analysis.
type AnalysisRequest struct {
	PhotoDataURI string `json:"photoDataUri"`
}

// AnalysisResult is a natural-language finding about the photo.
type AnalysisResult struct {
	AnalysisResult string `json:"analysisResult"`
}

// Analyzer inspects a plant photo. Implementations live outside this module;
// HTTPAnalyzer calls one over HTTP.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (AnalysisResult, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, req AnalysisRequest) (AnalysisResult, error)

// Analyze implements Analyzer.
func (f AnalyzerFunc) Analyze(ctx context.Context, req AnalysisRequest) (AnalysisResult, error) {
	return f(ctx, req)
}

// HTTPAnalyzer posts the request as JSON to an analysis endpoint and decodes
// the JSON reply.
type HTTPAnalyzer struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPAnalyzer returns an analyzer for endpoint with a 60s client timeout.
func NewHTTPAnalyzer(endpoint string) *HTTPAnalyzer {
	return &HTTPAnalyzer{Endpoint: endpoint, Client: &http.Client{Timeout: 60 * time.Second}}
}

// Analyze implements Analyzer.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (AnalysisResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return AnalysisResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint, bytes.NewReader(body))
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("build analysis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("call analyzer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return AnalysisResult{}, fmt.Errorf("analyzer returned %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}
	var out AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return AnalysisResult{}, fmt.Errorf("decode analysis: %w", err)
	}
	return out, nil
}
