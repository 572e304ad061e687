// Package speech renders reply text to audio: a network synthesizer first,
// an on-device synthesizer when the network one fails or is disabled.
package speech

// fallbackVoiceID is the universal fallback voice. It guarantees synthesis
// never fails purely because voice configuration is missing.
const fallbackVoiceID = "21m00Tcm4TlvDq8ikWAM"

// VoiceProfile selects the synthesized voice identity.
type VoiceProfile struct {
	// Gender is "male" or "female".
	Gender string `json:"gender,omitempty"`

	// Language is "en" or "sw".
	Language string `json:"language,omitempty"`
}

// VoiceMap holds the configured provider voice identifiers.
type VoiceMap struct {
	MaleEN   string `toml:"male_en"`
	FemaleEN string `toml:"female_en"`
	MaleSW   string `toml:"male_sw"`
	FemaleSW string `toml:"female_sw"`
}

// Resolve maps a profile to a provider voice identifier. Resolution order:
// language+gender identifier, gender-only default, hardcoded universal
// fallback.
func (m VoiceMap) Resolve(p VoiceProfile) string {
	var id string
	if p.Language == "sw" {
		if p.Gender == "male" {
			id = m.MaleSW
		} else {
			id = m.FemaleSW
		}
	}
	if id == "" {
		if p.Gender == "male" {
			id = m.MaleEN
		} else {
			id = m.FemaleEN
		}
	}
	if id == "" {
		id = fallbackVoiceID
	}
	return id
}
