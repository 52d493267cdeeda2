// Package confidence assigns the calibrated confidence label of an answer.
// The rules are ordered and the first matching rule wins; reordering them
// changes the engine's contract, so they live in exactly one place.
package confidence

import (
	"fmt"

	"github.com/acharyye/graphRAG/internal/domain"
)

// Params tune the scoring thresholds.
type Params struct {
	MinEvidence   int     // below this the answer is at most LOW
	HighRelevance float64 // agreed item score needed for HIGH
}

// Input is everything the scorer looks at. The scorer is pure: same input,
// same label.
type Input struct {
	Evidence     domain.EvidenceSet
	Requested    domain.DateRange
	Insufficient bool // the synthesizer declared the evidence insufficient
}

// Scorer labels query results.
type Scorer struct {
	params Params
}

// New creates a scorer.
func New(params Params) *Scorer {
	return &Scorer{params: params}
}

// Score applies the rules in order and returns the label plus a human
// refusal reason when the label is REFUSED.
//
//  1. REFUSED: no evidence, the synthesizer gave up, or the dated evidence
//     does not even overlap the requested period.
//  2. LOW: too little evidence, or the retrievers never agreed on anything.
//  3. HIGH: at least one agreed item above the relevance bar, and the
//     evidence covers the full requested period.
//  4. MEDIUM: everything else.
func (s *Scorer) Score(in Input) (domain.Confidence, string) {
	if len(in.Evidence) == 0 {
		return domain.ConfidenceRefused, "no evidence found for this question in your data"
	}
	if in.Insufficient {
		return domain.ConfidenceRefused, "the available evidence does not answer this question"
	}

	coverage := in.Evidence.Coverage()
	if !in.Requested.IsZero() && !coverage.IsZero() && !coverage.Overlaps(in.Requested) {
		return domain.ConfidenceRefused, fmt.Sprintf(
			"no data for the requested period %s (data covers %s)", in.Requested, coverage)
	}

	if len(in.Evidence) < s.params.MinEvidence || !in.Evidence.HasAgreement() {
		return domain.ConfidenceLow, ""
	}

	if s.hasStrongAgreement(in.Evidence) && coverage.Covers(in.Requested) {
		return domain.ConfidenceHigh, ""
	}

	return domain.ConfidenceMedium, ""
}

func (s *Scorer) hasStrongAgreement(evidence domain.EvidenceSet) bool {
	for _, item := range evidence {
		if item.Agreement && item.Score >= s.params.HighRelevance {
			return true
		}
	}
	return false
}
