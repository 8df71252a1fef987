// Package words supplies the word choices offered to drawers, per language,
// from embedded lists.
package words

import (
	"embed"
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

//go:embed wordlists/*.txt
var wordlistFS embed.FS

// Static serves word choices from the embedded per-language lists.
type Static struct {
	mu    sync.Mutex
	rng   *rand.Rand
	lists map[string][]string
}

// NewStatic loads the embedded word lists. The rng seed is taken so that
// tests can make picks deterministic.
func NewStatic(seed int64) (*Static, error) {
	s := &Static{
		rng:   rand.New(rand.NewSource(seed)),
		lists: make(map[string][]string),
	}

	entries, err := wordlistFS.ReadDir("wordlists")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded wordlists: %w", err)
	}
	for _, entry := range entries {
		lang := strings.TrimSuffix(entry.Name(), ".txt")
		raw, err := wordlistFS.ReadFile("wordlists/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read wordlist %s: %w", entry.Name(), err)
		}
		var list []string
		for _, line := range strings.Split(string(raw), "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				list = append(list, line)
			}
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("wordlist %s is empty", entry.Name())
		}
		s.lists[lang] = list
	}

	return s, nil
}

// Languages returns the supported language names.
func (s *Static) Languages() []string {
	langs := make([]string, 0, len(s.lists))
	for lang := range s.lists {
		langs = append(langs, lang)
	}
	return langs
}

// Pick returns n distinct words for the given language. Unknown languages
// fall back to english.
func (s *Static) Pick(language string, n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok := s.lists[language]
	if !ok {
		list = s.lists["english"]
	}
	if n > len(list) {
		n = len(list)
	}

	picked := make([]string, 0, n)
	seen := make(map[int]bool, n)
	for len(picked) < n {
		i := s.rng.Intn(len(list))
		if seen[i] {
			continue
		}
		seen[i] = true
		picked = append(picked, list[i])
	}
	return picked
}

// PickFrom returns n distinct words drawn from the provided list, for
// custom-word rooms. Lists shorter than n are returned shuffled in full.
func (s *Static) PickFrom(list []string, n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	shuffled := append([]string(nil), list...)
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}
