package model

import (
	"time"
)

// CandidateInteraction is a buyer question the extractor spotted, together
// with a suggested reply.
type CandidateInteraction struct {
	BuyerName      string `json:"buyer_name"`
	Question       string `json:"question"`
	SuggestedReply string `json:"suggested_reply"`
}

// Interaction is an accepted question/answer suggestion. Interactions are
// append-only and cleared in bulk by the operator; no deduplication applies.
type Interaction struct {
	ID             string    `json:"id"`
	BuyerName      string    `json:"buyer_name"`
	Question       string    `json:"question"`
	SuggestedReply string    `json:"suggested_reply"`
	CreatedAt      time.Time `json:"created_at"`
}

// AnalysisResult is everything the extractor pulled out of one submission.
// Any of the lists may be empty.
type AnalysisResult struct {
	Orders       []CandidateOrder       `json:"orders"`
	Products     []CandidateProduct     `json:"products"`
	Interactions []CandidateInteraction `json:"interactions"`
}

// Empty reports whether the result carries nothing worth ingesting.
func (r AnalysisResult) Empty() bool {
	return len(r.Orders) == 0 && len(r.Products) == 0 && len(r.Interactions) == 0
}
