package pimalink

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Phrases are the fragments of notification text that tell which state a
// panel moved to. Matching is plain substring containment, so the phrases
// must be written exactly as the cloud sends them.
type Phrases struct {
	Armed          string
	PartiallyArmed string
	Disarmed       string
}

// DefaultLocale is the language the PIMA cloud writes notifications in.
const DefaultLocale = "he"

var locales = map[string]Phrases{
	"he": {
		Armed:          "דריכה מלאה",
		PartiallyArmed: "דריכה חלקית",
		Disarmed:       "ביטול דריכה",
	},
	"en": {
		Armed:          "Full Arm",
		PartiallyArmed: "Home Arm",
		Disarmed:       "Disarm",
	},
}

// PhrasesFor returns the phrase table of the given locale.
func PhrasesFor(locale string) (Phrases, error) {
	p, ok := locales[locale]
	if !ok {
		return Phrases{}, fmt.Errorf("no notification phrases for locale %q, available: %v", locale, Locales())
	}
	return p, nil
}

// Locales lists the locales with a phrase table.
func Locales() []string {
	result := maps.Keys(locales)
	slices.Sort(result)
	return result
}
