package importer_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kamusis/sentari/internal/importer"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func texts(r *importer.Result) []string {
	out := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Text
	}
	return out
}

func TestCollect_File(t *testing.T) {
	p := writeFile(t, t.TempDir(), "week1.txt", "# monday\nFirst entry\n\n   \nSecond entry  \nFirst entry\n")

	r, err := importer.Collect(p, nil, nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	got := texts(r)
	if len(got) != 2 || got[0] != "First entry" || got[1] != "Second entry" {
		t.Fatalf("entries = %q", got)
	}
	if r.Comments != 1 || r.Blank != 2 || r.Duplicates != 1 || r.Files != 1 {
		t.Fatalf("counts = %+v", r)
	}
	if r.Entries[1].Line != 5 || r.Entries[1].Source != p {
		t.Fatalf("position = %+v", r.Entries[1])
	}
}

func TestCollect_SkipsSeenFingerprints(t *testing.T) {
	p := writeFile(t, t.TempDir(), "log.txt", "Already stored\nBrand new\n")
	seen := map[string]bool{importer.Fingerprint("  Already stored "): true}

	r, err := importer.Collect(p, seen, nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := texts(r); len(got) != 1 || got[0] != "Brand new" {
		t.Fatalf("entries = %q", got)
	}
	if !seen[importer.Fingerprint("Brand new")] {
		t.Fatalf("accepted entry was not added to seen")
	}
}

func TestCollect_DirectoryOrderAndExcludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "from b\n")
	writeFile(t, dir, "a.txt", "from a\n")
	writeFile(t, dir, "nested/c.txt", "from c\nfrom a\n")
	writeFile(t, dir, "draft.tmp", "must be excluded\n")
	writeFile(t, dir, ".hidden/d.txt", "hidden dir excluded\n")

	r, err := importer.Collect(dir, nil, importer.DefaultExcludes)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	got := texts(r)
	want := []string{"from a", "from b", "from c"}
	if len(got) != len(want) {
		t.Fatalf("entries = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entries = %q, want %q", got, want)
		}
	}
	if r.Files != 3 || r.Duplicates != 1 {
		t.Fatalf("counts = %+v", r)
	}
}

func TestCollect_MissingPath(t *testing.T) {
	if _, err := importer.Collect(filepath.Join(t.TempDir(), "nope.txt"), nil, nil); err == nil {
		t.Fatal("expected error for missing path")
	}
}
