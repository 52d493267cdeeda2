package synthesis

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/acharyye/graphRAG/internal/domain"
)

var numberPattern = regexp.MustCompile(`\$?\d[\d,]*(?:\.\d+)?%?`)

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// extractNumbers pulls numeric claims out of text, normalized to floats.
// Single-digit integers are ignored: "2 campaigns" is structure, not a
// metric claim worth tracing.
func extractNumbers(text string) []float64 {
	matches := numberPattern.FindAllString(text, -1)
	nums := make([]float64, 0, len(matches))
	for _, m := range matches {
		cleaned := strings.NewReplacer("$", "", ",", "", "%", "").Replace(m)
		if len(strings.ReplaceAll(cleaned, ".", "")) < 2 {
			continue
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			continue
		}
		nums = append(nums, f)
	}
	return nums
}

// numbersSupported checks that every numeric claim in the answer appears in
// the evidence. A claim matches an evidence number exactly or as a rounding
// of it to the claim's precision.
func numbersSupported(answer string, evidence domain.EvidenceSet) bool {
	claimed := extractNumbers(answer)
	if len(claimed) == 0 {
		return true
	}

	var available []float64
	for _, item := range evidence {
		available = append(available, extractNumbers(item.Snippet)...)
		available = append(available, extractNumbers(item.Name)...)
	}

	for _, c := range claimed {
		if !supported(c, available) {
			return false
		}
	}
	return true
}

func supported(claim float64, available []float64) bool {
	for _, a := range available {
		if math.Abs(claim-a) < 1e-9 {
			return true
		}
		// Accept the claim as a rounding of an evidence value.
		for _, places := range []int{0, 1, 2} {
			shift := math.Pow(10, float64(places))
			if math.Abs(claim-math.Round(a*shift)/shift) < 1e-9 {
				return true
			}
		}
	}
	return false
}

// attribute maps each answer sentence onto the evidence backing it, using
// explicit [n] citations first and entity-name mentions as fallback.
func attribute(answer string, evidence domain.EvidenceSet) []domain.ClaimSource {
	sentences := splitSentences(answer)
	claims := make([]domain.ClaimSource, 0, len(sentences))

	for _, sentence := range sentences {
		var sources []domain.EntityRef
		seen := make(map[string]bool)

		for _, m := range citationPattern.FindAllStringSubmatch(sentence, -1) {
			idx, err := strconv.Atoi(m[1])
			if err != nil || idx < 1 || idx > len(evidence) {
				continue
			}
			ref := evidence[idx-1].Entity
			if !seen[ref.Key()] {
				seen[ref.Key()] = true
				sources = append(sources, ref)
			}
		}

		lower := strings.ToLower(sentence)
		for _, item := range evidence {
			if item.Name == "" || seen[item.Entity.Key()] {
				continue
			}
			if strings.Contains(lower, strings.ToLower(item.Name)) {
				seen[item.Entity.Key()] = true
				sources = append(sources, item.Entity)
			}
		}

		if len(sources) > 0 {
			claims = append(claims, domain.ClaimSource{
				Claim:   strings.TrimSpace(citationPattern.ReplaceAllString(sentence, "")),
				Sources: sources,
			})
		}
	}
	return claims
}

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n'
	})
	var sentences []string
	for _, part := range parts {
		for _, s := range strings.Split(part, ". ") {
			s = strings.TrimSpace(strings.TrimSuffix(s, "."))
			if s != "" {
				sentences = append(sentences, s)
			}
		}
	}
	return sentences
}
