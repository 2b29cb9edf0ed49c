package utils

// Minimal server-side i18n for fixed keys.
// UI strings live in the kiosk frontend; the server provides only the
// acknowledgement and error messages it emits itself.

var translations = map[string]map[string]string{
	"fr": {
		"health.ok":       "ok",
		"submit.saved":    "Réponse enregistrée",
		"submit.queued":   "Réponse sauvegardée localement, synchronisation en attente",
		"submit.replayed": "Réponse déjà enregistrée",
		"form.closed":     "Le formulaire est fermé",
	},
	"en": {
		"health.ok":       "ok",
		"submit.saved":    "Response saved",
		"submit.queued":   "Saved locally, will sync when back online",
		"submit.replayed": "Response already recorded",
		"form.closed":     "The form is closed",
	},
}

// T returns the translated string for key in locale; falls back to French.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if v, ok := translations["fr"][key]; ok {
		return v
	}
	return key
}
