package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ricky22407-lang/Buyer-1/config"
	"github.com/ricky22407-lang/Buyer-1/model"
)

// AnalyzeInput is one submission to the extraction API: either raw chat text
// or a batch of screenshot images, plus the context the extractor needs to
// tell seller posts apart from buyer messages.
type AnalyzeInput struct {
	Text           string
	Images         [][]byte
	ProductContext string
	Seller         string
}

// Analyzer turns raw chat evidence into candidate orders, products and
// interactions. Implementations may be slow, rate limited and occasionally
// wrong; callers must treat an error as an empty result, never as fatal.
type Analyzer interface {
	Analyze(ctx context.Context, in AnalyzeInput) (model.AnalysisResult, error)
}

type ExtractorService struct {
	config     *config.ExtractorConfig
	httpClient *http.Client
}

// extractRequest is the wire request to the extraction API.
type extractRequest struct {
	Model          string   `json:"model,omitempty"`
	Text           string   `json:"text,omitempty"`
	Images         []string `json:"images,omitempty"` // base64 PNG/JPEG
	ProductContext string   `json:"product_context,omitempty"`
	Seller         string   `json:"seller,omitempty"`
}

// extractResponse is the wire response envelope from the extraction API.
type extractResponse struct {
	Code    int                  `json:"code"`
	Message string               `json:"msg"`
	Data    model.AnalysisResult `json:"data"`
}

func NewExtractorService(cfg *config.ExtractorConfig) *ExtractorService {
	return &ExtractorService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
	}
}

// Analyze submits text or images for extraction and returns whatever
// candidates the API found. Any of the result lists may be empty even on
// success.
func (s *ExtractorService) Analyze(ctx context.Context, in AnalyzeInput) (model.AnalysisResult, error) {
	reqBody := extractRequest{
		Model:          s.config.Model,
		Text:           in.Text,
		ProductContext: in.ProductContext,
		Seller:         in.Seller,
	}
	for _, img := range in.Images {
		reqBody.Images = append(reqBody.Images, base64.StdEncoding.EncodeToString(img))
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.APIURL+"/v1/analyze", bytes.NewBuffer(jsonData))
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return model.AnalysisResult{}, fmt.Errorf("extraction API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result extractResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
	}

	if result.Code != 0 {
		return model.AnalysisResult{}, fmt.Errorf("extraction API error: %s", result.Message)
	}

	return result.Data, nil
}
