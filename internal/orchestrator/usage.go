package orchestrator

import "turn-orchestrator/pkg/provider"

// UsageSummary is the canonical per-reply usage shape (spec §4.8): raw
// provider fields plus a derived `used`/`remaining` computed against
// whichever limit (if any) applied to the call.
type UsageSummary struct {
	Limit      *int   `json:"limit,omitempty"`
	Input      *int   `json:"input,omitempty"`
	Output     *int   `json:"output,omitempty"`
	Thinking   *int   `json:"thinking,omitempty"`
	Total      *int   `json:"total,omitempty"`
	Used       int    `json:"used"`
	Remaining  *int   `json:"remaining,omitempty"`
	LimitBasis string `json:"limitBasis,omitempty"`
}

// Limit basis tags.
const (
	LimitBasisTargetOption   = "target_option"
	LimitBasisProviderDefault = "provider_default"
)

// summarizeUsage folds a provider's raw Usage (possibly nil, on an
// adapter that returns none) and the resolved maxTokens limit (with its
// provenance) into the canonical summary. `used` prefers output over
// total when a limit is known; falls back to the same precedence
// otherwise, since no raw field is privileged in the spec absent a
// known limit.
func summarizeUsage(usage *provider.Usage, limit int, limitBasis string) UsageSummary {
	s := UsageSummary{Used: 0}

	if limit > 0 {
		l := limit
		s.Limit = &l
		s.LimitBasis = limitBasis
	}

	if usage != nil {
		if usage.InputTokens > 0 {
			v := usage.InputTokens
			s.Input = &v
		}
		if usage.OutputTokens > 0 {
			v := usage.OutputTokens
			s.Output = &v
		}
		if usage.ThinkingTokens > 0 {
			v := usage.ThinkingTokens
			s.Thinking = &v
		}
		if usage.TotalTokens > 0 {
			v := usage.TotalTokens
			s.Total = &v
		}
	}

	switch {
	case s.Output != nil:
		s.Used = *s.Output
	case s.Total != nil:
		s.Used = *s.Total
	}

	if s.Limit != nil {
		remaining := *s.Limit - s.Used
		s.Remaining = &remaining
	}

	return s
}
