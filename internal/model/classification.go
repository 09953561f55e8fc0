package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// HeadingIdentification is the first-pass result: what the product is and
// which 4-digit heading it most likely falls under. It lives only for the
// duration of one classification request.
type HeadingIdentification struct {
	ProductName        string `json:"product_name"`
	Heading            string `json:"hs_heading"`
	HeadingDescription string `json:"heading_description"`
	Reasoning          string `json:"reasoning"`
}

// Alternative is another plausible code if an assumption differs.
type Alternative struct {
	HSCode      string `json:"hs_code"`
	Description string `json:"description"`
	Reason      string `json:"reason"`
}

// EdgeCase describes a condition the user did not specify under which a
// different code would apply.
type EdgeCase struct {
	Condition   string `json:"condition"`
	HSCode      string `json:"hs_code"`
	Description string `json:"description"`
	Explanation string `json:"explanation"`
}

// ClassificationResult is the final structured answer for one request.
// It is assembled once from the complete model output and never mutated
// after being persisted.
type ClassificationResult struct {
	InterpretedProduct string        `json:"interpreted_product"`
	PrimaryHSCode      string        `json:"primary_hs_code"`
	PrimaryDescription string        `json:"primary_description"`
	Confidence         float64       `json:"confidence"`
	Reasoning          string        `json:"reasoning"`
	Alternatives       []Alternative `json:"alternatives"`
	EdgeCases          []EdgeCase    `json:"edge_cases"`
}

// maxVariants caps alternatives and edge cases per result.
const maxVariants = 5

// Validate checks the invariants every delivered result must satisfy:
// a dotted primary code, confidence in (0, 1], and bounded variant lists.
func (r *ClassificationResult) Validate() error {
	if !IsFullCode(r.PrimaryHSCode) {
		return eris.Errorf("result: primary code %q is not DDDD.DD.DD", r.PrimaryHSCode)
	}
	if r.Confidence <= 0 || r.Confidence > 1 {
		return eris.Errorf("result: confidence %v outside (0, 1]", r.Confidence)
	}
	if len(r.Alternatives) > maxVariants {
		return eris.Errorf("result: %d alternatives, max %d", len(r.Alternatives), maxVariants)
	}
	if len(r.EdgeCases) > maxVariants {
		return eris.Errorf("result: %d edge cases, max %d", len(r.EdgeCases), maxVariants)
	}
	return nil
}

// Clamp trims overlong variant lists in place. The prompt asks for 3-5 of
// each, so anything past five is model overrun, not signal.
func (r *ClassificationResult) Clamp() {
	if len(r.Alternatives) > maxVariants {
		r.Alternatives = r.Alternatives[:maxVariants]
	}
	if len(r.EdgeCases) > maxVariants {
		r.EdgeCases = r.EdgeCases[:maxVariants]
	}
}

// PartialResult carries whichever fields were extractable from an
// incomplete output buffer. Nil slices and empty strings mean "not seen
// yet". Partial data is provisional; only the completion event is
// authoritative.
type PartialResult struct {
	InterpretedProduct string        `json:"interpreted_product,omitempty"`
	PrimaryHSCode      string        `json:"primary_hs_code,omitempty"`
	PrimaryDescription string        `json:"primary_description,omitempty"`
	Confidence         float64       `json:"confidence,omitempty"`
	Reasoning          string        `json:"reasoning,omitempty"`
	Alternatives       []Alternative `json:"alternatives,omitempty"`
	EdgeCases          []EdgeCase    `json:"edge_cases,omitempty"`
}

// Empty reports whether nothing at all was extracted.
func (p PartialResult) Empty() bool {
	return p.InterpretedProduct == "" && p.PrimaryHSCode == "" &&
		p.PrimaryDescription == "" && p.Confidence == 0 &&
		p.Reasoning == "" && len(p.Alternatives) == 0 && len(p.EdgeCases) == 0
}

// HistoryRecord is one immutable row of a user's classification history.
type HistoryRecord struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	Description   string        `json:"description"`
	HSCode        string        `json:"hs_code"`
	HSDescription string        `json:"hs_description"`
	Confidence    float64       `json:"confidence"`
	Reasoning     string        `json:"reasoning"`
	Alternatives  []Alternative `json:"alternatives,omitempty"`
	EdgeCases     []EdgeCase    `json:"edge_cases,omitempty"`
	TokensUsed    int           `json:"tokens_used"`
	CreatedAt     time.Time     `json:"created_at"`
}
