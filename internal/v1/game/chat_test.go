package game

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWordFilterWholeWordOnly(t *testing.T) {
	f := NewWordFilter([]string{"darn", "heck"})

	assert.Equal(t, "**** it", f.Apply("darn it"))
	assert.Equal(t, "oh **** oh ****", f.Apply("oh DARN oh heck"))
	// Substrings are left alone.
	assert.Equal(t, "darning needles", f.Apply("darning needles"))
}

func TestWordFilterNilPassesThrough(t *testing.T) {
	var f *WordFilter
	assert.Equal(t, "anything", f.Apply("anything"))
}

func TestSanitizeChatText(t *testing.T) {
	text, ok := SanitizeChatText("  hello  ")
	assert.True(t, ok)
	assert.Equal(t, "hello", text)

	_, ok = SanitizeChatText("   ")
	assert.False(t, ok)

	long := strings.Repeat("x", 500)
	text, ok = SanitizeChatText(long)
	assert.True(t, ok)
	assert.Len(t, []rune(text), MaxChatCodePoints)
}

func TestChatRateLimitRollingWindow(t *testing.T) {
	p := &Player{}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		allowed, _ := p.allowChat(now.Add(time.Duration(i) * 500 * time.Millisecond))
		assert.True(t, allowed, "message %d", i)
	}

	// Fourth message inside the window starts the cooldown.
	allowed, retry := p.allowChat(now.Add(2 * time.Second))
	assert.False(t, allowed)
	assert.Equal(t, 5*time.Second, retry)

	// Still cooling down.
	allowed, _ = p.allowChat(now.Add(4 * time.Second))
	assert.False(t, allowed)

	// After the cooldown and once the window has rolled past, allowed again.
	allowed, _ = p.allowChat(now.Add(12 * time.Second))
	assert.True(t, allowed)
}

func TestLobbyHoldsHistoryUntilCleared(t *testing.T) {
	l := lobby{filter: NewWordFilter([]string{"darn"})}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	msg := l.addChat("u1", "darn right", now)
	assert.Equal(t, "**** right", msg.Text)
	assert.Equal(t, LobbyKindChat, msg.Kind)

	sys := l.addSystem("u1 joined the room", now)
	assert.Equal(t, SystemSender, sys.Sender)
	assert.Equal(t, LobbyKindSystem, sys.Kind)

	assert.Len(t, l.messages, 2)
	l.clear()
	assert.Empty(t, l.messages)
}
