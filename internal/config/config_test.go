package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fullYAML = `
database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  name: sprintdeck_prod
  user: deck
  password: secret

server:
  port: 9090
  routine_scan_cron: "*/5 * * * *"

notify:
  slack:
    bot_token: xoxb-test
    channel: "#sprints"
  discord:
    bot_token: discord-test
    channel: "123456"

automation:
  default_low: 25
  default_high: 80
`

const minimalYAML = `
database:
  driver: sqlite
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "mysql")
	}
	if cfg.Database.Host != "10.0.0.5" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "10.0.0.5")
	}
	if cfg.Database.Port != 3307 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 3307)
	}
	if cfg.Database.Name != "sprintdeck_prod" {
		t.Errorf("Database.Name = %q, want %q", cfg.Database.Name, "sprintdeck_prod")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Server.RoutineScanCron != "*/5 * * * *" {
		t.Errorf("Server.RoutineScanCron = %q, want %q", cfg.Server.RoutineScanCron, "*/5 * * * *")
	}
	if cfg.Notify.Slack.Channel != "#sprints" {
		t.Errorf("Notify.Slack.Channel = %q, want %q", cfg.Notify.Slack.Channel, "#sprints")
	}
	if cfg.Notify.Discord.Channel != "123456" {
		t.Errorf("Notify.Discord.Channel = %q, want %q", cfg.Notify.Discord.Channel, "123456")
	}
	if cfg.Automation.DefaultLow != 25 {
		t.Errorf("Automation.DefaultLow = %d, want %d", cfg.Automation.DefaultLow, 25)
	}
	if cfg.Automation.DefaultHigh != 80 {
		t.Errorf("Automation.DefaultHigh = %d, want %d", cfg.Automation.DefaultHigh, 80)
	}
}

func TestParse_MinimalConfig_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Path != "sprintdeck.db" {
		t.Errorf("Database.Path = %q, want %q (default)", cfg.Database.Path, "sprintdeck.db")
	}
	if cfg.Database.Host != "127.0.0.1" {
		t.Errorf("Database.Host = %q, want %q (default)", cfg.Database.Host, "127.0.0.1")
	}
	if cfg.Database.Port != 3306 {
		t.Errorf("Database.Port = %d, want %d (default)", cfg.Database.Port, 3306)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d (default)", cfg.Server.Port, 8080)
	}
	if cfg.Server.RoutineScanCron != "*/15 * * * *" {
		t.Errorf("Server.RoutineScanCron = %q, want %q (default)", cfg.Server.RoutineScanCron, "*/15 * * * *")
	}
	if cfg.Automation.DefaultLow != 35 {
		t.Errorf("Automation.DefaultLow = %d, want %d (default)", cfg.Automation.DefaultLow, 35)
	}
	if cfg.Automation.DefaultHigh != 70 {
		t.Errorf("Automation.DefaultHigh = %d, want %d (default)", cfg.Automation.DefaultHigh, 70)
	}
}

func TestParse_EmptyDriverDefaultsToSqlite(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want %q (default)", cfg.Database.Driver, "sqlite")
	}
}

func TestParse_InvalidDriver(t *testing.T) {
	yaml := `
database:
  driver: postgres
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for invalid driver")
	}
	if !strings.Contains(err.Error(), "must be sqlite or mysql") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "must be sqlite or mysql")
	}
}

func TestParse_PortOutOfRange(t *testing.T) {
	yaml := `
server:
  port: 70000
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for port out of range")
	}
	if !strings.Contains(err.Error(), "out of range") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "out of range")
	}
}

func TestParse_InvertedThresholds(t *testing.T) {
	yaml := `
automation:
  default_low: 80
  default_high: 40
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for inverted thresholds")
	}
	if !strings.Contains(err.Error(), "low < high") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "low < high")
	}
}

func TestParse_SlackTokenWithoutChannel(t *testing.T) {
	yaml := `
notify:
  slack:
    bot_token: xoxb-test
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for slack token without channel")
	}
	if !strings.Contains(err.Error(), "notify.slack.channel is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "notify.slack.channel is required")
	}
}

func TestParse_DiscordTokenWithoutChannel(t *testing.T) {
	yaml := `
notify:
  discord:
    bot_token: discord-test
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for discord token without channel")
	}
	if !strings.Contains(err.Error(), "notify.discord.channel is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "notify.discord.channel is required")
	}
}

func TestParse_MultipleValidationErrors(t *testing.T) {
	yaml := `
database:
  driver: postgres
server:
  port: -1
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "must be sqlite or mysql") {
		t.Errorf("error missing driver complaint: %s", msg)
	}
	if !strings.Contains(msg, "out of range") {
		t.Errorf("error missing port complaint: %s", msg)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte(":::invalid"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "config: parse:") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse:")
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sprintdeck.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "sqlite")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/sprintdeck.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}
