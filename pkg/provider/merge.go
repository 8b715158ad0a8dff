package provider

import "encoding/json"

// mergeExtraBody round-trips body through JSON to a generic map and merges
// extraBody's keys on top, implementing spec §4.6's "extraBody: opaque
// overrides merged into the final body". Top-level keys in extraBody win;
// nested merging is not attempted since extraBody entries are opaque by
// contract.
func mergeExtraBody(body interface{}, extraBody map[string]interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	merged := map[string]interface{}{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}
	for k, v := range extraBody {
		merged[k] = v
	}
	return merged, nil
}
