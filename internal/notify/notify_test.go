package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	tables := []interface{}{
		&models.AuditLog{}, &models.AutomationSetting{}, &models.Suggestion{},
	}
	if err := gdb.AutoMigrate(tables...); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return gdb
}

// recordingSink captures posted events.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Post(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingSink) posted() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestHub_Audit(t *testing.T) {
	gdb := openTestDB(t)
	hub := NewHub(HubOpts{DB: gdb})
	defer hub.Close()

	hub.Audit("alice", "task.create", "ws1", map[string]interface{}{"taskId": "task-abc001"})
	hub.Audit("alice", "task.delete", "ws1", nil)
	hub.Wait()

	var entries []models.AuditLog
	if err := gdb.Order("id ASC").Find(&entries).Error; err != nil {
		t.Fatalf("load audit log: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Action != "task.create" || !strings.Contains(entries[0].Metadata, "task-abc001") {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Metadata != "{}" {
		t.Errorf("empty metadata stored as %q", entries[1].Metadata)
	}
}

func TestHub_Automation(t *testing.T) {
	gdb := openTestDB(t)
	hub := NewHub(HubOpts{DB: gdb})
	defer hub.Close()

	task := models.Task{
		ID:          "task-abc001",
		WorkspaceID: "ws1",
		Title:       "Small thing",
		Points:      1,
		Status:      models.StatusBacklog,
	}
	hub.Automation(task, "alice")
	hub.Wait()

	var suggestions []models.Suggestion
	if err := gdb.Find(&suggestions).Error; err != nil {
		t.Fatalf("load suggestions: %v", err)
	}
	if len(suggestions) != 1 || suggestions[0].Kind != models.SuggestionDefer {
		t.Errorf("suggestions = %+v", suggestions)
	}
}

func TestHub_Announce(t *testing.T) {
	gdb := openTestDB(t)
	good := &recordingSink{}
	bad := &recordingSink{err: errors.New("unreachable")}
	hub := NewHub(HubOpts{DB: gdb, Sinks: []Sink{bad, good}})
	defer hub.Close()

	hub.Announce(Event{Title: "Sprint started", Severity: "info"})
	hub.Wait()

	// A failing sink does not stop the others.
	if got := good.posted(); len(got) != 1 || got[0].Title != "Sprint started" {
		t.Errorf("good sink saw %+v", got)
	}
	if got := bad.posted(); len(got) != 1 {
		t.Errorf("bad sink saw %+v", got)
	}
}

type mockSlackClient struct {
	mu       sync.Mutex
	channels []string
	err      error
}

func (m *mockSlackClient) PostMessageContext(_ context.Context, channelID string, _ ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, channelID)
	return channelID, "1234.5678", m.err
}

func TestSlackSink(t *testing.T) {
	if _, err := NewSlackSink(SlackOpts{Channel: "#dev"}); err == nil {
		t.Error("NewSlackSink accepted missing token")
	}
	if _, err := NewSlackSink(SlackOpts{BotToken: "xoxb-test"}); err == nil {
		t.Error("NewSlackSink accepted missing channel")
	}

	mock := &mockSlackClient{}
	sink, err := NewSlackSink(SlackOpts{Channel: "#dev", Client: mock})
	if err != nil {
		t.Fatalf("NewSlackSink: %v", err)
	}
	if sink.Name() != "slack" {
		t.Errorf("Name() = %q", sink.Name())
	}
	if err := sink.Post(context.Background(), Event{Title: "t", Severity: "info"}); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if len(mock.channels) != 1 || mock.channels[0] != "#dev" {
		t.Errorf("posted to %v", mock.channels)
	}

	mock.err = errors.New("rate limited")
	if err := sink.Post(context.Background(), Event{Title: "t"}); err == nil {
		t.Error("Post swallowed client error")
	}
}

type mockDiscordSession struct {
	mu     sync.Mutex
	embeds []*discordgo.MessageEmbed
	err    error
}

func (m *mockDiscordSession) ChannelMessageSendEmbed(_ string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeds = append(m.embeds, embed)
	return &discordgo.Message{}, m.err
}

func TestDiscordSink(t *testing.T) {
	if _, err := NewDiscordSink(DiscordOpts{Channel: "123"}); err == nil {
		t.Error("NewDiscordSink accepted missing token")
	}

	mock := &mockDiscordSession{}
	sink, err := NewDiscordSink(DiscordOpts{Channel: "123", Session: mock})
	if err != nil {
		t.Fatalf("NewDiscordSink: %v", err)
	}
	if sink.Name() != "discord" {
		t.Errorf("Name() = %q", sink.Name())
	}
	if err := sink.Post(context.Background(), Event{Title: "Capacity rejected", Body: "details", Severity: "warning"}); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if len(mock.embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(mock.embeds))
	}
	embed := mock.embeds[0]
	if embed.Title != "Capacity rejected" || embed.Color != severityEmbedColors["warning"] {
		t.Errorf("embed = %+v", embed)
	}
}

func TestHub_CloseIdempotent(t *testing.T) {
	gdb := openTestDB(t)
	hub := NewHub(HubOpts{DB: gdb})
	hub.Close()
	hub.Close()
}

func TestHub_EnqueueAfterClose(t *testing.T) {
	gdb := openTestDB(t)
	sink := &recordingSink{}
	hub := NewHub(HubOpts{DB: gdb, Sinks: []Sink{sink}})
	hub.Close()

	// A closed hub drops jobs instead of sending on the closed channel.
	hub.Audit("alice", "task.create", "ws1", nil)
	hub.Announce(Event{Title: "Sprint started", Severity: "info"})

	var entries int64
	gdb.Model(&models.AuditLog{}).Count(&entries)
	if entries != 0 {
		t.Errorf("audit entries = %d, want 0", entries)
	}
	if got := sink.posted(); len(got) != 0 {
		t.Errorf("sink received %d events after close", len(got))
	}
}
