package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ricky22407-lang/Buyer-1/middleware"
	"github.com/ricky22407-lang/Buyer-1/model"
	"github.com/ricky22407-lang/Buyer-1/service"
)

// AnalyzeHandler submits raw chat evidence to the extractor and feeds the
// result through the reconciler. Extraction failures are never fatal: the
// caller gets a single "analysis failed" signal and the ledger stays as it
// was.
type AnalyzeHandler struct {
	analyzer   service.Analyzer
	reconciler *service.Reconciler
	store      *service.LedgerStore
}

func NewAnalyzeHandler(analyzer service.Analyzer, reconciler *service.Reconciler, store *service.LedgerStore) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzer:   analyzer,
		reconciler: reconciler,
		store:      store,
	}
}

type analyzeTextRequest struct {
	Text      string `json:"text" binding:"required"`
	GroupName string `json:"group_name" binding:"required"`
}

// Text analyzes a pasted chat log.
func (h *AnalyzeHandler) Text(c *gin.Context) {
	var req analyzeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), service.AnalyzeInput{
		Text:           req.Text,
		ProductContext: h.store.ProductContext(),
		Seller:         middleware.GetSeller(c),
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Analysis failed. Check the extractor API key and connectivity."})
		return
	}

	summary := h.reconciler.Ingest(c.Request.Context(), result, model.SourceManual, req.GroupName)
	c.JSON(http.StatusOK, summary)
}

// Images analyzes one or more uploaded screenshots. Per-image size cap, not
// a total cap: a long chat session arrives as many small crops.
const maxImageBytes = 8 << 20

// Images handles a multipart screenshot submission.
func (h *AnalyzeHandler) Images(c *gin.Context) {
	group := c.PostForm("group_name")
	if group == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group_name is required"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No images provided"})
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No images provided"})
		return
	}

	var images [][]byte
	for _, fh := range files {
		if fh.Size > maxImageBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Image too large: " + fh.Filename})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image: " + fh.Filename})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image: " + fh.Filename})
			return
		}
		images = append(images, data)
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), service.AnalyzeInput{
		Images:         images,
		ProductContext: h.store.ProductContext(),
		Seller:         middleware.GetSeller(c),
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Analysis failed. Check the extractor API key and connectivity."})
		return
	}

	summary := h.reconciler.Ingest(c.Request.Context(), result, model.SourceImage, group)
	c.JSON(http.StatusOK, summary)
}
