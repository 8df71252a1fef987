package game

import (
	"fmt"
	"strings"
)

// Language is a supported word-list language.
type Language string

const (
	LangEnglish Language = "english"
	LangSpanish Language = "spanish"
)

// WordMode controls how word choices and patterns are produced.
//
//   - normal: words come from the language list, unless custom_words is
//     non-empty, in which case the custom list replaces it.
//   - hidden: as normal, but the pattern is never revealed and no hints fire.
//   - combination: custom words are mixed into the language list.
type WordMode string

const (
	ModeNormal      WordMode = "normal"
	ModeHidden      WordMode = "hidden"
	ModeCombination WordMode = "combination"
)

// MinCustomWords is the smallest accepted custom word list.
const MinCustomWords = 10

// Room size bounds. Public rooms cap lower than private ones.
const (
	MinRoomPlayers   = 2
	MaxRoomPlayers   = 20
	MaxPublicPlayers = 8
)

// Settings is the enumerated, validated room configuration.
type Settings struct {
	MaxPlayers      int      `json:"max_players"`
	Rounds          int      `json:"rounds"`
	DrawTimeSeconds int      `json:"draw_time_seconds"`
	Language        Language `json:"language"`
	Hints           int      `json:"hints"`
	WordMode        WordMode `json:"word_mode"`
	CustomWords     []string `json:"custom_words,omitempty"`
	IsPrivate       bool     `json:"is_private"`
	AllowMidGameJoin bool    `json:"allow_mid_game_join"`
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	MaxPlayers       *int      `json:"max_players,omitempty"`
	Rounds           *int      `json:"rounds,omitempty"`
	DrawTimeSeconds  *int      `json:"draw_time_seconds,omitempty"`
	Language         *Language `json:"language,omitempty"`
	Hints            *int      `json:"hints,omitempty"`
	WordMode         *WordMode `json:"word_mode,omitempty"`
	CustomWords      *[]string `json:"custom_words,omitempty"`
	AllowMidGameJoin *bool     `json:"allow_mid_game_join,omitempty"`
}

// DefaultPublicSettings returns the settings for auto-created public rooms.
func DefaultPublicSettings() Settings {
	return Settings{
		MaxPlayers:       8,
		Rounds:           3,
		DrawTimeSeconds:  80,
		Language:         LangEnglish,
		Hints:            2,
		WordMode:         ModeNormal,
		IsPrivate:        false,
		AllowMidGameJoin: true,
	}
}

// DefaultPrivateSettings returns the settings a newly created private room
// starts from before the host's patch is applied.
func DefaultPrivateSettings() Settings {
	s := DefaultPublicSettings()
	s.IsPrivate = true
	return s
}

// Apply merges a patch into a copy of s and validates the result.
func (s Settings) Apply(p *SettingsPatch) (Settings, error) {
	if p == nil {
		return s, s.Validate()
	}
	if p.MaxPlayers != nil {
		s.MaxPlayers = *p.MaxPlayers
	}
	if p.Rounds != nil {
		s.Rounds = *p.Rounds
	}
	if p.DrawTimeSeconds != nil {
		s.DrawTimeSeconds = *p.DrawTimeSeconds
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.Hints != nil {
		s.Hints = *p.Hints
	}
	if p.WordMode != nil {
		s.WordMode = *p.WordMode
	}
	if p.CustomWords != nil {
		words := make([]string, 0, len(*p.CustomWords))
		for _, w := range *p.CustomWords {
			w = strings.TrimSpace(w)
			if w != "" {
				words = append(words, w)
			}
		}
		s.CustomWords = words
	}
	if p.AllowMidGameJoin != nil {
		s.AllowMidGameJoin = *p.AllowMidGameJoin
	}
	return s, s.Validate()
}

// Validate checks every field against its documented domain.
func (s Settings) Validate() error {
	if s.MaxPlayers < MinRoomPlayers || s.MaxPlayers > MaxRoomPlayers {
		return fmt.Errorf("max_players must be between %d and %d, got %d", MinRoomPlayers, MaxRoomPlayers, s.MaxPlayers)
	}
	if !s.IsPrivate && s.MaxPlayers > MaxPublicPlayers {
		return fmt.Errorf("public rooms allow at most %d players, got %d", MaxPublicPlayers, s.MaxPlayers)
	}
	if s.Rounds < 1 || s.Rounds > 10 {
		return fmt.Errorf("rounds must be between 1 and 10, got %d", s.Rounds)
	}
	if s.DrawTimeSeconds < 30 || s.DrawTimeSeconds > 240 {
		return fmt.Errorf("draw_time_seconds must be between 30 and 240, got %d", s.DrawTimeSeconds)
	}
	switch s.Language {
	case LangEnglish, LangSpanish:
	default:
		return fmt.Errorf("unsupported language %q", s.Language)
	}
	if s.Hints < 0 || s.Hints > 5 {
		return fmt.Errorf("hints must be between 0 and 5, got %d", s.Hints)
	}
	switch s.WordMode {
	case ModeNormal, ModeHidden, ModeCombination:
	default:
		return fmt.Errorf("unsupported word_mode %q", s.WordMode)
	}
	if len(s.CustomWords) > 0 && len(s.CustomWords) < MinCustomWords {
		return fmt.Errorf("custom_words requires at least %d entries, got %d", MinCustomWords, len(s.CustomWords))
	}
	return nil
}
