package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessageShort(t *testing.T) {
	parts := splitMessage("hello")
	if len(parts) != 1 || parts[0] != "hello" {
		t.Errorf("unexpected parts: %v", parts)
	}
}

func TestSplitMessageLong(t *testing.T) {
	text := strings.Repeat("a", maxMessageLength+100)
	parts := splitMessage(text)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if len(parts[0]) != maxMessageLength {
		t.Errorf("expected first part at the limit, got %d", len(parts[0]))
	}
	if len(parts[1]) != 100 {
		t.Errorf("expected 100-char remainder, got %d", len(parts[1]))
	}
}

func TestInteractionChannelID(t *testing.T) {
	i := &interaction{command: "ping", userID: "7", chatID: -100123, fromID: 7}
	if i.ChannelID() != "-100123" {
		t.Errorf("unexpected channel id: %s", i.ChannelID())
	}
	if i.Command() != "ping" || i.UserID() != "7" {
		t.Errorf("unexpected interaction fields: %+v", i)
	}
}
