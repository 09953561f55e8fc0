package pipeline

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/customs-ai/hs-classify/internal/model"
)

// Field extraction patterns for incomplete JSON buffers. Each tolerates a
// truncated tail: string values must be closed to match, except reasoning,
// which is allowed to run to end-of-buffer so the UI can show it growing.
var (
	interpretedRe = regexp.MustCompile(`"interpreted_product"\s*:\s*"([^"\\]*(?:\\.[^"\\]*)*)"`)
	hsCodeRe      = regexp.MustCompile(`"primary_hs_code"\s*:\s*"([^"]+)"`)
	descriptionRe = regexp.MustCompile(`"primary_description"\s*:\s*"([^"\\]*(?:\\.[^"\\]*)*)"`)
	confidenceRe  = regexp.MustCompile(`"confidence"\s*:\s*(0\.\d+|1\.0|1)`)
	reasoningRe   = regexp.MustCompile(`"reasoning"\s*:\s*"((?:[^"\\]|\\.)*)`)

	edgeCasesRe = regexp.MustCompile(`"edge_cases"\s*:\s*\[([\s\S]*)`)
	edgeCaseRe  = regexp.MustCompile(`\{\s*"condition"\s*:\s*"([^"\\]*(?:\\.[^"\\]*)*)"\s*,\s*"hs_code"\s*:\s*"([^"]+)"\s*,\s*"description"\s*:\s*"([^"\\]*(?:\\.[^"\\]*)*)"\s*,\s*"explanation"\s*:\s*"([^"\\]*(?:\\.[^"\\]*)*)"\s*\}`)

	alternativesRe = regexp.MustCompile(`"alternatives"\s*:\s*\[([\s\S]*)`)
	alternativeRe  = regexp.MustCompile(`\{\s*"hs_code"\s*:\s*"([^"]+)"\s*,\s*"description"\s*:\s*"([^"\\]*(?:\\.[^"\\]*)*)"\s*,\s*"reason"\s*:\s*"([^"\\]*(?:\\.[^"\\]*)*)"\s*\}`)
)

// ExtractPartial mines whatever structured fields are currently well-formed
// in an incomplete output buffer. Pure function of the whole buffer; it is
// recomputed from scratch on every increment rather than patched, so a
// momentarily-wrong match self-corrects on the next call. Progressive
// disclosure only; the final result never comes from here.
func ExtractPartial(buffer string) model.PartialResult {
	// A complete parse beats regex mining.
	var full model.ClassificationResult
	if err := json.Unmarshal([]byte(cleanJSON(buffer)), &full); err == nil {
		return model.PartialResult{
			InterpretedProduct: full.InterpretedProduct,
			PrimaryHSCode:      full.PrimaryHSCode,
			PrimaryDescription: full.PrimaryDescription,
			Confidence:         full.Confidence,
			Reasoning:          full.Reasoning,
			Alternatives:       full.Alternatives,
			EdgeCases:          full.EdgeCases,
		}
	}

	var p model.PartialResult

	if m := interpretedRe.FindStringSubmatch(buffer); m != nil {
		p.InterpretedProduct = unescape(m[1])
	}
	if m := hsCodeRe.FindStringSubmatch(buffer); m != nil {
		p.PrimaryHSCode = m[1]
	}
	if m := descriptionRe.FindStringSubmatch(buffer); m != nil {
		p.PrimaryDescription = unescape(m[1])
	}
	if m := confidenceRe.FindStringSubmatch(buffer); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.Confidence = v
		}
	}
	if m := reasoningRe.FindStringSubmatch(buffer); m != nil {
		p.Reasoning = unescape(m[1])
	}

	// Array fields: collect only the complete elements seen so far.
	if m := edgeCasesRe.FindStringSubmatch(buffer); m != nil {
		for _, em := range edgeCaseRe.FindAllStringSubmatch(m[1], maxVariantMatches) {
			p.EdgeCases = append(p.EdgeCases, model.EdgeCase{
				Condition:   unescape(em[1]),
				HSCode:      em[2],
				Description: unescape(em[3]),
				Explanation: unescape(em[4]),
			})
		}
	}
	if m := alternativesRe.FindStringSubmatch(buffer); m != nil {
		for _, am := range alternativeRe.FindAllStringSubmatch(m[1], maxVariantMatches) {
			p.Alternatives = append(p.Alternatives, model.Alternative{
				HSCode:      am[1],
				Description: unescape(am[2]),
				Reason:      unescape(am[3]),
			})
		}
	}

	return p
}

// maxVariantMatches caps array mining at the result limit.
const maxVariantMatches = 5

func unescape(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\n`, "\n")
	return s
}
