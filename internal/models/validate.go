package models

import (
	"fmt"
	"strings"
)

// RequiredResponseFields are the survey questions that must be answered
// before a submission is accepted. Free-comment fields stay optional.
var RequiredResponseFields = []string{
	"session",
	"lieuGlobal",
	"lieuAdapte",
	"lieuRealite",
	"scenarios",
	"difficulte",
	"evolutionDifficulte",
	"rythme",
	"duree",
	"attentes",
	"pedagogie",
	"qualiteReponses",
	"disponibiliteFormateurs",
	"satisfactionFormation",
}

// ValidateResponsePayload checks a raw submission for missing required
// fields. Validation failures are surfaced immediately and never queued.
func ValidateResponsePayload(payload map[string]any) error {
	var missing []string
	for _, f := range RequiredResponseFields {
		v, ok := payload[f]
		if !ok {
			missing = append(missing, f)
			continue
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}
