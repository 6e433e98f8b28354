package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/workhub/internal/model"
	"github.com/nhle/workhub/internal/sync"
)

func TestPrinter_PrintsEachNotificationOnce(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)
	t0 := time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC)

	older := model.Notification{ID: "1", Title: "first", EventType: model.EventTypeGeneral, CreatedAt: t0}
	newer := model.Notification{ID: "2", Title: "second", EventType: model.EventTypeCommentCreated, CreatedAt: t0.Add(time.Minute), ActorName: "Kim"}

	p.view(sync.View{State: sync.StateLive, Notifications: []model.Notification{older}, UnreadCount: 1})
	p.view(sync.View{State: sync.StateLive, Notifications: []model.Notification{newer, older}, UnreadCount: 2})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "-- live (1 unread)", lines[0])
	assert.Contains(t, lines[1], "first")
	assert.Contains(t, lines[2], "second (Kim)")
	assert.True(t, strings.HasPrefix(lines[2], "*"))
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, validateURL("https://hub.example.com"))
	assert.Error(t, validateURL(""))
	assert.Error(t, validateURL("hub.example.com"))
	assert.Error(t, validateRequired("Token")("  "))
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	root := NewRootCommand()
	for _, name := range []string{"tui", "watch", "login", "logout", "list", "read"} {
		cmd, _, err := root.Find([]string{name})
		assert.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
