package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

// runCmd executes the root command with args and returns stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// offlineConfigDir writes a config that never reaches the network.
func offlineConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	yaml := `
wikipedia:
  url: "http://127.0.0.1:1/w/api.php"
  timeout: "200ms"
cache:
  backend: in_memory
reliability:
  retry_max_attempts: 1
`
	if err := os.WriteFile(filepath.Join(dir, "dev.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"ENV_NAME", "GEMINI_API_KEY", "GOOGLE_API_KEY", "WEATHER_API_KEY", "CACHE_BACKEND", "WIKIPEDIA_URL"} {
		if v, ok := os.LookupEnv(k); ok {
			os.Unsetenv(k)
			t.Cleanup(func() { os.Setenv(k, v) })
		}
	}
	return dir
}

// TestCatalogCmd covers text and JSON listings with filters.
func TestCatalogCmd(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantInOut string
	}{
		{name: "all products", args: []string{"catalog"}, wantInOut: "of 45 products"},
		{name: "limited", args: []string{"catalog", "--limit", "2"}, wantInOut: "2 of 45 products"},
		{name: "filtered", args: []string{"catalog", "--climate", "hot", "--exclude-inappropriate"}, wantInOut: "ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCmd(t, tt.args...)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if !strings.Contains(out, tt.wantInOut) {
				t.Errorf("output missing %q:\n%s", tt.wantInOut, out)
			}
		})
	}
}

// TestCatalogCmd_JSON verifies --json prints a decodable product list.
func TestCatalogCmd_JSON(t *testing.T) {
	out, err := runCmd(t, "--json", "catalog", "--limit", "3")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	var products []models.Product
	if err := json.Unmarshal([]byte(out), &products); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(products) != 3 {
		t.Errorf("len(products) = %d, want 3", len(products))
	}
}

// TestTaboosCmd covers activity-scoped rules, festivals and unknown places.
func TestTaboosCmd(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantInOut []string
		wantErr   bool
	}{
		{
			name:      "beach in Pakistan",
			args:      []string{"taboos", "Pakistan", "--activity", "beach"},
			wantInOut: []string{"Avoid bikini"},
		},
		{
			name:      "festival month",
			args:      []string{"taboos", "Mumbai", "--month", "november", "--year", "2026"},
			wantInOut: []string{"Festival: Diwali (8 Nov to 12 Nov 2026)"},
		},
		{
			name:      "unknown destination",
			args:      []string{"taboos", "Reykjavik"},
			wantInOut: []string{"general etiquette"},
		},
		{
			name:    "bad month",
			args:    []string{"taboos", "Mumbai", "--month", "smarch"},
			wantErr: true,
		},
		{
			name:    "missing destination",
			args:    []string{"taboos"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCmd(t, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			for _, want := range tt.wantInOut {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

// TestClimateCmd verifies a built-in city answers offline with one month.
func TestClimateCmd(t *testing.T) {
	dir := offlineConfigDir(t)

	out, err := runCmd(t, "--config-dir", dir, "climate", "Karachi", "--month", "july")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "source: builtin") || !strings.Contains(out, "July") {
		t.Errorf("output = %s, want builtin July row", out)
	}
	if strings.Contains(out, "January") {
		t.Errorf("output = %s, want only the focus month", out)
	}
}

// TestClimateCmd_MissingConfig verifies a bad config dir is reported.
func TestClimateCmd_MissingConfig(t *testing.T) {
	offlineConfigDir(t)
	_, err := runCmd(t, "--config-dir", filepath.Join(t.TempDir(), "absent"), "climate", "Karachi")
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Execute() error = %v, want config file not found", err)
	}
}

// TestRecommendCmd runs the rule-parsed pipeline end to end.
func TestRecommendCmd(t *testing.T) {
	dir := offlineConfigDir(t)

	out, err := runCmd(t, "--config-dir", dir, "--json", "recommend", "beach", "trip", "to", "Karachi", "in", "July")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	var rec models.Recommendation
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(rec.Products) == 0 {
		t.Error("no products recommended")
	}
	for _, p := range rec.Products {
		if p.HasTag("bikini") {
			t.Errorf("product %s carries a tag excluded in Pakistan", p.ID)
		}
	}
}

// TestRecommendCmd_Text verifies the text layout lists products.
func TestRecommendCmd_Text(t *testing.T) {
	dir := offlineConfigDir(t)

	out, err := runCmd(t, "--config-dir", dir, "recommend", "business trip to Tokyo in March")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "ID") || !strings.Contains(out, "SCORE") {
		t.Errorf("output missing product table:\n%s", out)
	}
}
