package assistant

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dvloznov/sales-ledger/internal/domain"
)

var titleCaser = cases.Title(language.English)

func parseMappingResponse(raw string) (*domain.MappingSchema, error) {
	clean := cleanModelJSON(raw)

	var mapping domain.MappingSchema
	if err := json.Unmarshal([]byte(clean), &mapping); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w\nraw response: %s", err, raw)
	}
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	return &mapping, nil
}

func parseCategorizationResponse(raw string) (map[string]ProductInfo, error) {
	clean := cleanModelJSON(raw)

	var decoded map[string]ProductInfo
	if err := json.Unmarshal([]byte(clean), &decoded); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w\nraw response: %s", err, raw)
	}

	result := make(map[string]ProductInfo, len(decoded))
	for name, info := range decoded {
		result[name] = ProductInfo{
			Category:    matchCategory(info.Category),
			CleanedName: cleanDisplayName(info.CleanedName, name),
		}
	}
	return result, nil
}

// ParseInsightText decodes a model narrative in either supported output
// format: a JSON object with drive/win/risk/action keys, or four
// "|||"-delimited segments with optional "DRIVE:"-style labels.
func ParseInsightText(raw string) (domain.Insight, error) {
	clean := cleanModelJSON(raw)

	var insight domain.Insight
	if err := json.Unmarshal([]byte(clean), &insight); err == nil {
		if insight != (domain.Insight{}) {
			return trimInsight(insight), nil
		}
	}

	parts := strings.Split(strings.TrimSpace(raw), "|||")
	if len(parts) < 4 {
		return domain.Insight{}, fmt.Errorf("unrecognized narrative format: %q", truncate(raw, 120))
	}
	insight = domain.Insight{
		Drive:  stripLabel(parts[0], "DRIVE"),
		Win:    stripLabel(parts[1], "WIN"),
		Risk:   stripLabel(parts[2], "RISK"),
		Action: stripLabel(parts[3], "ACTION"),
	}
	if insight == (domain.Insight{}) {
		return domain.Insight{}, fmt.Errorf("empty narrative in response: %q", truncate(raw, 120))
	}
	return insight, nil
}

// matchCategory maps a model-returned category onto the closed vocabulary,
// case-insensitively. Anything outside it becomes "Other".
func matchCategory(name string) string {
	norm := strings.ToUpper(strings.TrimSpace(name))
	for _, c := range domain.Categories {
		if strings.ToUpper(c) == norm {
			return c
		}
	}
	return "Other"
}

// cleanDisplayName prefers the model's cleaned name, falling back to
// title-casing the original when the model returned none.
func cleanDisplayName(cleaned, original string) string {
	if s := strings.TrimSpace(cleaned); s != "" {
		return s
	}
	return titleCaser.String(strings.ToLower(strings.TrimSpace(original)))
}

// cleanModelJSON strips Markdown fences and surrounding junk the model
// sometimes emits despite instructions, keeping only the outermost JSON
// value.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if arrStart := strings.Index(s, "["); arrStart != -1 && (start == -1 || arrStart < start) {
		start, end = arrStart, strings.LastIndex(s, "]")
	}
	if start != -1 && end > start {
		s = strings.TrimSpace(s[start : end+1])
	}

	return s
}

func stripLabel(s, label string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToUpper(s), label+":") {
		s = strings.TrimSpace(s[len(label)+1:])
	}
	return s
}

func trimInsight(ins domain.Insight) domain.Insight {
	ins.Drive = strings.TrimSpace(ins.Drive)
	ins.Win = strings.TrimSpace(ins.Win)
	ins.Risk = strings.TrimSpace(ins.Risk)
	ins.Action = strings.TrimSpace(ins.Action)
	return ins
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
