package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ricky22407-lang/Buyer-1/config"
	"github.com/ricky22407-lang/Buyer-1/model"
)

func extractorConfig(url string) *config.ExtractorConfig {
	return &config.ExtractorConfig{
		APIURL:     url,
		APIToken:   "test-token",
		Model:      "vision-large",
		TimeoutSec: 5,
	}
}

func TestExtractorAnalyzeText(t *testing.T) {
	var gotReq map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/analyze" {
			t.Errorf("path = %s, want /v1/analyze", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"msg":  "success",
			"data": model.AnalysisResult{
				Orders: []model.CandidateOrder{{BuyerName: "Amy", ItemName: "Sakura Cookie", Quantity: 2}},
			},
		})
	}))
	defer server.Close()

	svc := NewExtractorService(extractorConfig(server.URL))
	result, err := svc.Analyze(context.Background(), AnalyzeInput{
		Text:           "Amy +2",
		ProductContext: "Sakura Cookie $150",
		Seller:         "Shop Owner",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(result.Orders) != 1 || result.Orders[0].BuyerName != "Amy" {
		t.Errorf("result = %+v", result)
	}

	if gotReq["text"] != "Amy +2" {
		t.Errorf("request text = %v", gotReq["text"])
	}
	if gotReq["product_context"] != "Sakura Cookie $150" {
		t.Errorf("request product_context = %v", gotReq["product_context"])
	}
	if gotReq["seller"] != "Shop Owner" {
		t.Errorf("request seller = %v", gotReq["seller"])
	}
	if gotReq["model"] != "vision-large" {
		t.Errorf("request model = %v", gotReq["model"])
	}
}

func TestExtractorAnalyzeImagesBase64(t *testing.T) {
	var gotReq struct {
		Images []string `json:"images"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": model.AnalysisResult{}})
	}))
	defer server.Close()

	svc := NewExtractorService(extractorConfig(server.URL))
	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	if _, err := svc.Analyze(context.Background(), AnalyzeInput{Images: [][]byte{raw}}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(gotReq.Images) != 1 {
		t.Fatalf("request carried %d images, want 1", len(gotReq.Images))
	}
	decoded, err := base64.StdEncoding.DecodeString(gotReq.Images[0])
	if err != nil || string(decoded) != string(raw) {
		t.Errorf("image payload not base64 round-trippable: %v", err)
	}
}

func TestExtractorAnalyzeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 42, "msg": "quota exceeded"})
	}))
	defer server.Close()

	svc := NewExtractorService(extractorConfig(server.URL))
	if _, err := svc.Analyze(context.Background(), AnalyzeInput{Text: "hello"}); err == nil {
		t.Fatal("expected error for non-zero envelope code")
	}
}

func TestExtractorAnalyzeHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	svc := NewExtractorService(extractorConfig(server.URL))
	if _, err := svc.Analyze(context.Background(), AnalyzeInput{Text: "hello"}); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestExtractorAnalyzeMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	svc := NewExtractorService(extractorConfig(server.URL))
	if _, err := svc.Analyze(context.Background(), AnalyzeInput{Text: "hello"}); err == nil {
		t.Fatal("expected error for malformed response body")
	}
}
