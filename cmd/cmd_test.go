package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/kamusis/sentari/internal/config"
	"github.com/kamusis/sentari/internal/diary"
)

// setupHome points HOME at a temp dir, selects the offline embeddings
// provider and resets the package-level flags.
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SENTARI_EMBEDDINGS_PROVIDER", "hash")
	flagUser = ""
	flagInitStore = ""
	flagAddJSON, flagAddMetrics = false, false
	flagImportDryRun = false
	return home
}

func entryCount(t *testing.T, user string) int {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer st.Close()
	n, err := st.Count(context.Background(), user)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

func TestInitAddImport(t *testing.T) {
	home := setupHome(t)

	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	for _, p := range []string{"sentari.yaml", ".env", filepath.Join("data", "users")} {
		if _, err := os.Stat(filepath.Join(home, ".sentari", p)); err != nil {
			t.Fatalf("init did not create %s: %v", p, err)
		}
	}
	// A second init leaves everything in place.
	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("runInit (again): %v", err)
	}

	if err := runAdd(addCmd, []string{"I'm so excited about the new project launch!"}); err != nil {
		t.Fatalf("runAdd: %v", err)
	}
	if n := entryCount(t, config.DefaultUser); n != 1 {
		t.Fatalf("after add: %d entries", n)
	}

	transcript := filepath.Join(home, "week.txt")
	body := "# week one\nI'm so excited about the new project launch!\nWith everything going on, I feel sad and depressed.\n\nI'm grateful and appreciative because I feel amazing.\n"
	if err := os.WriteFile(transcript, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := runImport(importCmd, []string{transcript}); err != nil {
		t.Fatalf("runImport: %v", err)
	}
	if n := entryCount(t, config.DefaultUser); n != 3 {
		t.Fatalf("after import: %d entries, want 3 (duplicate skipped)", n)
	}
	if err := runImport(importCmd, []string{transcript}); err != nil {
		t.Fatalf("runImport (again): %v", err)
	}
	if n := entryCount(t, config.DefaultUser); n != 3 {
		t.Fatalf("re-import added entries: %d", n)
	}

	flagUser = "alex"
	if err := runAdd(addCmd, []string{"Quiet evening."}); err != nil {
		t.Fatalf("runAdd(--user alex): %v", err)
	}
	if n := entryCount(t, "alex"); n != 1 {
		t.Fatalf("alex has %d entries", n)
	}
	if n := entryCount(t, config.DefaultUser); n != 3 {
		t.Fatalf("--user leaked into default user: %d", n)
	}
}

func TestAdd_WithoutInit(t *testing.T) {
	setupHome(t)
	err := runAdd(addCmd, []string{"hello"})
	if err == nil || !strings.Contains(err.Error(), "sentari init") {
		t.Fatalf("expected init hint, got %v", err)
	}
}

func TestResolveUser(t *testing.T) {
	setupHome(t)
	cfg := &config.Config{User: "configured"}

	if u, err := resolveUser(cfg); err != nil || u != "configured" {
		t.Fatalf("resolveUser = %q, %v", u, err)
	}
	flagUser = "flagged"
	if u, err := resolveUser(cfg); err != nil || u != "flagged" {
		t.Fatalf("resolveUser = %q, %v", u, err)
	}
	flagUser = "../../etc"
	if _, err := resolveUser(cfg); !errors.Is(err, diary.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	flagUser = ""
	if u, _ := resolveUser(&config.Config{}); u != config.DefaultUser {
		t.Fatalf("fallback user = %q", u)
	}
}

func TestReadText(t *testing.T) {
	got, err := readText([]string{"one", "two"}, strings.NewReader("ignored"))
	if err != nil || got != "one two" {
		t.Fatalf("readText(args) = %q, %v", got, err)
	}
	got, err = readText(nil, strings.NewReader("from stdin\n"))
	if err != nil || got != "from stdin\n" {
		t.Fatalf("readText(stdin) = %q, %v", got, err)
	}
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger("warn", false)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) || !l.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("warn logger has wrong level")
	}
	l, err = newLogger("warn", true)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("verbose should enable debug")
	}
	if _, err := newLogger("loud", false); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestResolveSemanticMinScore(t *testing.T) {
	newCmd := func() *cobra.Command {
		c := &cobra.Command{}
		c.Flags().IntVar(&flagSearchK, "k", 5, "")
		c.Flags().Float64Var(&flagSearchMinScore, "min-score", 0, "")
		return c
	}

	if got := resolveSemanticMinScore(newCmd()); got != 0.30 {
		t.Fatalf("default = %v, want 0.30", got)
	}
	c := newCmd()
	_ = c.Flags().Set("k", "3")
	if got := resolveSemanticMinScore(c); got != 0 {
		t.Fatalf("--k = %v, want 0", got)
	}
	c = newCmd()
	_ = c.Flags().Set("k", "3")
	_ = c.Flags().Set("min-score", "0.5")
	if got := resolveSemanticMinScore(c); got != 0.5 {
		t.Fatalf("--min-score = %v, want 0.5", got)
	}
}

func TestReflectSchema_CounterIsLabelMap(t *testing.T) {
	b, err := json.Marshal(reflectSchema(diary.Profile{}))
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	var s struct {
		Properties map[string]struct {
			Type                 string `json:"type"`
			AdditionalProperties struct {
				Type string `json:"type"`
			} `json:"additionalProperties"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(b, &s); err != nil {
		t.Fatalf("unmarshal schema: %v", err)
	}
	tc, ok := s.Properties["theme_count"]
	if !ok || tc.Type != "object" || tc.AdditionalProperties.Type != "integer" {
		t.Fatalf("theme_count schema = %+v (schema %s)", tc, b)
	}
	if s.Properties["dominant_vibe"].Type != "string" {
		t.Fatalf("dominant_vibe schema = %+v", s.Properties["dominant_vibe"])
	}
}

func TestRunSchema_UnknownName(t *testing.T) {
	if err := runSchema(schemaCmd, []string{"nope"}); err == nil || !strings.Contains(err.Error(), "entry, profile, result") {
		t.Fatalf("expected list of schemas, got %v", err)
	}
}
