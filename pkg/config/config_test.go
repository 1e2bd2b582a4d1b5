package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glimps-re/autovt/pkg/browser"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func TestLoad(t *testing.T) {
	content := `
debug: true
format: html
maxFileSize: 32MB
username: analyst
password: secret
browser:
  headless: true
  elementTimeout: 45s
timeouts:
  report: 12m
  poll: 2s
selectors:
  uploadButton:
    css: "form > button.upload"
    shadow: ["#view-container > home-view", "#uploadForm"]
texts:
  pending: ["Checking hash", "Uploading"]
`
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	conf := Default()
	if err := Load(viper.New(), path, conf); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	want.Debug = true
	want.Format = "html"
	want.MaxFileSize = "32MB"
	want.Username = "analyst"
	want.Password = "secret"
	want.Browser.Headless = true
	want.Browser.ElementTimeout = Duration(45 * time.Second)
	want.Timeouts.Report = Duration(12 * time.Minute)
	want.Timeouts.Poll = Duration(2 * time.Second)
	want.Selectors.UploadButton = browser.ByCSS("form > button.upload", "#view-container > home-view", "#uploadForm")
	want.Texts.Pending = []string{"Checking hash", "Uploading"}
	if diff := cmp.Diff(want, conf); diff != "" {
		t.Errorf("Load() diff(-want +got):\n%s", diff)
	}
}

func TestLoad_invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("timeouts:\n  report: soon\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := Load(viper.New(), path, Default()); err == nil {
		t.Errorf("Load() error wanted for an invalid duration")
	}
	if err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yml"), Default()); err == nil {
		t.Errorf("Load() error wanted for a missing file")
	}
}

func TestConfig_yaml(t *testing.T) {
	conf := Default()
	conf.Password = "secret"
	out, err := yaml.Marshal(conf)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	if strings.Contains(string(out), "secret") {
		t.Errorf("password printed:\n%s", out)
	}
	if !strings.Contains(string(out), "report: 8m0s") {
		t.Errorf("durations not printed as text:\n%s", out)
	}
}

func TestDuration_Set(t *testing.T) {
	var d Duration
	if err := d.Set("1m30s"); err != nil {
		t.Fatalf("Duration.Set() error = %v", err)
	}
	if time.Duration(d) != 90*time.Second {
		t.Errorf("Duration.Set() = %v", d)
	}
	if err := d.Set("later"); err == nil {
		t.Errorf("Duration.Set() error wanted")
	}
	if d.Type() != "duration" || d.String() != "1m30s" {
		t.Errorf("Duration = %s (%s)", d, d.Type())
	}
}
