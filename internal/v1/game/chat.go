package game

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxChatCodePoints bounds one chat or lobby message.
const MaxChatCodePoints = 200

// Chat/guess rate limit: at most chatBurst messages per rolling chatWindow,
// with a cooldown after an excess message.
const (
	chatBurst    = 3
	chatWindow   = 10 * time.Second
	chatCooldown = 5 * time.Second
)

// WordFilter censors configured words in chat. The zero value passes
// everything through.
type WordFilter struct {
	blocked map[string]struct{}
}

// NewWordFilter builds a filter from a blocklist; matching is
// case-insensitive and whole-word.
func NewWordFilter(words []string) *WordFilter {
	f := &WordFilter{blocked: make(map[string]struct{}, len(words))}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			f.blocked[w] = struct{}{}
		}
	}
	return f
}

// Apply replaces each blocked whole-word token with '*' repeated to the
// token's length.
func (f *WordFilter) Apply(text string) string {
	if f == nil || len(f.blocked) == 0 {
		return text
	}
	fields := strings.Fields(text)
	changed := false
	for i, tok := range fields {
		if _, ok := f.blocked[strings.ToLower(tok)]; ok {
			fields[i] = strings.Repeat("*", len([]rune(tok)))
			changed = true
		}
	}
	if !changed {
		return text
	}
	return strings.Join(fields, " ")
}

// SanitizeChatText trims and bounds a chat line. Returns the cleaned text
// and whether it is acceptable.
func SanitizeChatText(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	runes := []rune(text)
	if len(runes) > MaxChatCodePoints {
		text = string(runes[:MaxChatCodePoints])
	}
	return text, true
}

// allowChat applies the rolling-window rate limit to one player. Returns
// false with the retry-after duration when the message must be rejected.
func (p *Player) allowChat(now time.Time) (bool, time.Duration) {
	if now.Before(p.cooldownUntil) {
		return false, p.cooldownUntil.Sub(now)
	}

	cutoff := now.Add(-chatWindow)
	kept := p.chatTimes[:0]
	for _, t := range p.chatTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	p.chatTimes = kept

	if len(p.chatTimes) >= chatBurst {
		p.cooldownUntil = now.Add(chatCooldown)
		return false, chatCooldown
	}
	p.chatTimes = append(p.chatTimes, now)
	return true, 0
}

// lobby holds the pre-game chat history and emits system notices.
type lobby struct {
	messages []LobbyMessage
	filter   *WordFilter
}

func (l *lobby) addChat(sender UserID, text string, now time.Time) LobbyMessage {
	msg := LobbyMessage{
		ID:     uuid.NewString(),
		Sender: sender,
		Kind:   LobbyKindChat,
		Text:   l.filter.Apply(text),
		TsMs:   now.UnixMilli(),
	}
	l.messages = append(l.messages, msg)
	return msg
}

func (l *lobby) addSystem(text string, now time.Time) LobbyMessage {
	msg := LobbyMessage{
		ID:     uuid.NewString(),
		Sender: SystemSender,
		Kind:   LobbyKindSystem,
		Text:   text,
		TsMs:   now.UnixMilli(),
	}
	l.messages = append(l.messages, msg)
	return msg
}

func (l *lobby) clear() {
	l.messages = nil
}
