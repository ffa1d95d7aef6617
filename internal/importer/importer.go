// Package importer reads diary transcripts from text files so they can be
// replayed through the pipeline, skipping entries already in history.
package importer

import (
	"bufio"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kamusis/sentari/internal/analysis"
)

// DefaultExcludes are skipped when importing a directory.
var DefaultExcludes = []string{".DS_Store", "Thumbs.db", "*.tmp", "*.bak", "*~", ".*"}

// Entry is one transcript line to replay.
type Entry struct {
	Source string // file the line came from
	Line   int    // 1-based line number
	Text   string
}

// Result is returned by Collect.
type Result struct {
	Entries    []Entry
	Files      int // files read
	Comments   int // lines starting with '#'
	Blank      int // empty or whitespace-only lines
	Duplicates int // lines whose fingerprint was already seen
}

// Fingerprint returns the hex-encoded MD5 digest of text after the same
// normalization the pipeline applies, so a stored entry and the line it was
// imported from share a fingerprint.
func Fingerprint(text string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(analysis.Normalize(text))))
}

// Collect reads path, a transcript file or a directory of them, one entry per
// line. seen holds fingerprints to skip and is updated with every accepted
// entry; it may be nil. Directories are walked in lexical order and entries
// matching excludes are skipped.
func Collect(path string, seen map[string]bool, excludes []string) (*Result, error) {
	if seen == nil {
		seen = map[string]bool{}
	}
	result := &Result{}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat %s: %w", path, err)
	}
	if !info.IsDir() {
		if err := readFile(path, seen, result); err != nil {
			return result, err
		}
		return result, nil
	}

	err = filepath.WalkDir(path, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		// Skip the root itself.
		if p == path {
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		if matchesExclude(rel, excludes) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return readFile(p, seen, result)
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

func readFile(path string, seen map[string]bool, result *Result) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer f.Close()
	result.Files++
	if err := readLines(f, path, seen, result); err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	return nil
}

func readLines(r io.Reader, source string, seen map[string]bool, result *Result) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			result.Blank++
			continue
		case strings.HasPrefix(line, "#"):
			result.Comments++
			continue
		}
		fp := Fingerprint(line)
		if seen[fp] {
			result.Duplicates++
			continue
		}
		seen[fp] = true
		result.Entries = append(result.Entries, Entry{Source: source, Line: n, Text: line})
	}
	return scanner.Err()
}

// matchesExclude reports whether relPath matches any of the given glob patterns.
func matchesExclude(relPath string, patterns []string) bool {
	name := filepath.Base(relPath)
	for _, pattern := range patterns {
		// Match against the full relative path AND just the basename.
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}
