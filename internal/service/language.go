package service

import (
	"strings"

	"github.com/windfall/poplingo_service/internal/errors"
)

// Language is a supported native or target language.
type Language string

const (
	English    Language = "English"
	Spanish    Language = "Spanish"
	Mandarin   Language = "Mandarin Chinese"
	Hindi      Language = "Hindi"
	Arabic     Language = "Arabic"
	Bengali    Language = "Bengali"
	Portuguese Language = "Portuguese"
	Russian    Language = "Russian"
	Japanese   Language = "Japanese"
	French     Language = "French"
)

// Languages lists every supported language in display order.
var Languages = []Language{
	English, Spanish, Mandarin, Hindi, Arabic,
	Bengali, Portuguese, Russian, Japanese, French,
}

var languageAliases = map[string]Language{
	"mandarin": Mandarin,
	"chinese":  Mandarin,
}

// ParseLanguage matches s case-insensitively against Languages.
func ParseLanguage(s string) (Language, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, l := range Languages {
		if strings.ToLower(string(l)) == name {
			return l, nil
		}
	}
	if l, ok := languageAliases[name]; ok {
		return l, nil
	}
	return "", errors.Validation("unsupported language: " + s)
}

// Voice is a prebuilt text-to-speech voice.
type Voice string

const (
	VoicePuck   Voice = "Puck"
	VoiceCharon Voice = "Charon"
	VoiceKore   Voice = "Kore"
	VoiceFenrir Voice = "Fenrir"
	VoiceZephyr Voice = "Zephyr"
)

// DefaultVoice is used when a request names none.
const DefaultVoice = VoicePuck

// Voices lists every supported voice.
var Voices = []Voice{VoicePuck, VoiceCharon, VoiceKore, VoiceFenrir, VoiceZephyr}

// ParseVoice returns DefaultVoice for an empty name.
func ParseVoice(s string) (Voice, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultVoice, nil
	}
	for _, v := range Voices {
		if strings.EqualFold(string(v), s) {
			return v, nil
		}
	}
	return "", errors.Validation("unsupported voice: " + s)
}
