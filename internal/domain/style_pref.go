package domain

// StylePref is a per-manuscript key/value hint fed into generation prompts.
type StylePref struct {
	ManuscriptID string
	Key          string
	Value        string
}

// MergeStylePrefs layers explicit preferences over stored ones. Explicit
// keys win; empty keys are dropped.
func MergeStylePrefs(stored []StylePref, explicit map[string]string) map[string]string {
	merged := make(map[string]string, len(stored)+len(explicit))
	for _, p := range stored {
		if p.Key == "" {
			continue
		}
		merged[p.Key] = p.Value
	}
	for k, v := range explicit {
		if k == "" {
			continue
		}
		merged[k] = v
	}
	return merged
}
