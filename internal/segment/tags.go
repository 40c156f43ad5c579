package segment

import "strings"

// machineKeywords map equipment model mentions to machine tags.
// Scan order is fixed so repeated runs tag identically.
var machineKeywords = []struct {
	keyword string
	tag     string
}{
	{"ptl007", "machine_ptl007"},
	{"ptl008", "machine_ptl008"},
	{"rom27", "machine_rom27"},
	{"rom28", "machine_rom28"},
	{"stgh", "machine_stgh"},
}

var safetyKeywords = []string{"safety", "warning", "danger", "caution"}

var procedureKeywords = []string{"procedure", "step", "instruction", "how to"}

// ExtractTags runs a deterministic case-insensitive keyword scan over a
// unit's text. Each rule fires at most once, so duplicates cannot occur.
func ExtractTags(text string) []string {
	var tags []string
	lower := strings.ToLower(text)

	for _, m := range machineKeywords {
		if strings.Contains(lower, m.keyword) {
			tags = append(tags, m.tag)
		}
	}

	if containsAny(lower, safetyKeywords) {
		tags = append(tags, "safety")
	}

	if containsAny(lower, procedureKeywords) {
		tags = append(tags, "procedure")
	}

	return tags
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
