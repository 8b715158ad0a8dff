package orchestrator

import "strings"

// computeCapabilityNote implements spec §4.8 step 4: if any target in
// this turn carries a provider-search tool, build one shared note
// (built once, reused for every agent's system prompt) naming the
// search-capable agents.
func computeCapabilityNote(targets []TargetModel) string {
	var names []string
	for _, t := range targets {
		if hasSearchTool(t) {
			label := t.Name
			if label == "" {
				label = t.AgentID
			}
			names = append(names, label)
		}
	}
	if len(names) == 0 {
		return ""
	}
	return "The following agents in this conversation can search the web: " + strings.Join(names, ", ") + "."
}

func hasSearchTool(t TargetModel) bool {
	for _, tool := range t.Options.Tools {
		if strings.Contains(strings.ToLower(tool.Name), "search") {
			return true
		}
	}
	return false
}
