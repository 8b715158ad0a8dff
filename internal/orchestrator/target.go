package orchestrator

import (
	"fmt"
	"strings"

	"turn-orchestrator/internal/config"
	"turn-orchestrator/pkg/provider"
)

// modelSelectors are model_id values that mean "use the provider's
// configured default" (spec §4.8 step 2).
var modelSelectors = map[string]bool{
	"":        true,
	"smart":   true,
	"best":    true,
	"default": true,
}

// TargetModel is one entry of a turn request's target_models[], as
// received from the wire before normalisation.
type TargetModel struct {
	Provider string
	ModelID  string
	Name     string
	AgentID  string
	Options  provider.Options
}

// normalizeTarget implements spec §4.8 step 2: lower-cases the provider
// name, resolves selector model ids to the provider's configured
// default, derives agent_id when absent, and merges the provider's
// default options under the supplied ones. index is this target's
// ordinal position in the turn's target_models[], used for the
// synthetic agent_id.
func normalizeTarget(t TargetModel, index int, cfg *config.Config) (TargetModel, error) {
	out := t
	out.Provider = strings.ToLower(strings.TrimSpace(t.Provider))

	pcfg, ok := cfg.Providers[out.Provider]
	if !ok {
		return TargetModel{}, fmt.Errorf("unrecognised provider %q", out.Provider)
	}

	if modelSelectors[strings.ToLower(strings.TrimSpace(out.ModelID))] {
		out.ModelID = pcfg.DefaultModelID
	}

	if out.AgentID == "" {
		out.AgentID = fmt.Sprintf("%s:%s:%d", out.Provider, out.ModelID, index)
	}

	out.Options = mergeOptions(t.Options, pcfg)
	return out, nil
}

// defaultOptionsFromProviderConfig derives the provider's baseline
// per-call options from its configured defaults.
func defaultOptionsFromProviderConfig(pcfg config.Provider) provider.Options {
	out := provider.Options{MaxTokens: pcfg.MaxTokens}
	if pcfg.ReasoningLevel != "" {
		out.Reasoning = map[string]interface{}{"effort": pcfg.ReasoningLevel}
	}
	if pcfg.ThinkingBudget > 0 {
		out.Thinking = &provider.ThinkingOptions{Type: "enabled", BudgetTokens: pcfg.ThinkingBudget}
	}
	return out
}

// mergeOptions deep-merges the provider's configured defaults under the
// caller-supplied options: extraBody/extraHeaders are merged key by key
// with the caller's values winning; scalar maxTokens inherits from the
// default only when the caller left it unset; reasoning/thinking fall
// back to the default wholesale when the caller left them unset.
func mergeOptions(supplied provider.Options, pcfg config.Provider) provider.Options {
	def := defaultOptionsFromProviderConfig(pcfg)
	out := supplied

	if out.MaxTokens <= 0 {
		out.MaxTokens = def.MaxTokens
	}
	if out.Reasoning == nil {
		out.Reasoning = def.Reasoning
	}
	if out.Thinking == nil {
		out.Thinking = def.Thinking
	}

	out.ExtraBody = mergeStringKeyedMaps(def.ExtraBody, supplied.ExtraBody)

	mergedHeaders := map[string]string{}
	for k, v := range def.ExtraHeaders {
		mergedHeaders[k] = v
	}
	for k, v := range supplied.ExtraHeaders {
		mergedHeaders[k] = v
	}
	if len(mergedHeaders) > 0 {
		out.ExtraHeaders = mergedHeaders
	}

	return out
}

func mergeStringKeyedMaps(base, overlay map[string]interface{}) map[string]interface{} {
	if base == nil && overlay == nil {
		return nil
	}
	merged := map[string]interface{}{}
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

// normalizeTargets normalises every target in order, assigning each its
// positional index for synthetic agent_id derivation.
func normalizeTargets(targets []TargetModel, cfg *config.Config) ([]TargetModel, error) {
	out := make([]TargetModel, len(targets))
	for i, t := range targets {
		normalized, err := normalizeTarget(t, i, cfg)
		if err != nil {
			return nil, err
		}
		out[i] = normalized
	}
	return out, nil
}
