package targets

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/PentesterFlow/storescrape/internal/errors"
)

// =============================================================================
// Checker Tests
// =============================================================================

func TestNewChecker_InvalidPattern(t *testing.T) {
	if _, err := NewChecker(Rules{IncludePatterns: []string{`[invalid`}}); err == nil {
		t.Error("invalid include pattern should fail")
	}
	if _, err := NewChecker(Rules{ExcludePatterns: []string{`[invalid`}}); err == nil {
		t.Error("invalid exclude pattern should fail")
	}
}

func TestChecker_Allows(t *testing.T) {
	tests := []struct {
		name  string
		rules Rules
		url   string
		want  bool
	}{
		{"https", Rules{}, "https://store.playstation.com/en-us/product/X", true},
		{"http", Rules{}, "http://store.example/p/1", true},
		{"relative", Rules{}, "/product/1", false},
		{"ftp", Rules{}, "ftp://store.example/p/1", false},
		{"not a url", Rules{}, "Elden Ring", false},
		{
			name:  "allowed domain",
			rules: Rules{AllowedDomains: []string{"playstation.com"}},
			url:   "https://store.playstation.com/en-us/product/X",
			want:  true,
		},
		{
			name:  "foreign domain",
			rules: Rules{AllowedDomains: []string{"playstation.com"}},
			url:   "https://example.com/product/X",
			want:  false,
		},
		{
			name:  "excluded",
			rules: Rules{ExcludePatterns: []string{`/concept/`}},
			url:   "https://store.example/en-us/concept/1",
			want:  false,
		},
		{
			name:  "include miss",
			rules: Rules{IncludePatterns: []string{`/product/`}},
			url:   "https://store.example/en-us/category/1",
			want:  false,
		},
		{
			name:  "exclude beats include",
			rules: Rules{IncludePatterns: []string{`/product/`}, ExcludePatterns: []string{`bundle`}},
			url:   "https://store.example/product/bundle-1",
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChecker(tt.rules)
			if err != nil {
				t.Fatalf("NewChecker() error = %v", err)
			}
			if got := c.Allows(tt.url); got != tt.want {
				t.Errorf("Allows(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Parse / ReadFile Tests
// =============================================================================

func TestParse(t *testing.T) {
	input := strings.Join([]string{
		"# wishlist",
		"",
		"  https://store.example/product/A  ",
		"not-a-url",
		"https://store.example/product/B",
		"\t",
		"https://store.example/product/A",
	}, "\n")

	got, err := Parse(strings.NewReader(input), Rules{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []string{
		"https://store.example/product/A",
		"https://store.example/product/B",
		"https://store.example/product/A",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %v, want %v", got, want)
	}
}

func TestParse_Empty(t *testing.T) {
	got, err := Parse(strings.NewReader("# nothing here\n\n"), Rules{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Parse() = %v, want empty", got)
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultInputFile)
	content := "https://store.example/product/A\r\nhttps://store.example/product/B\r\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFile(path, Rules{})
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(got) != 2 || got[1] != "https://store.example/product/B" {
		t.Errorf("ReadFile() = %v", got)
	}
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.txt"), Rules{})
	if err == nil {
		t.Fatal("ReadFile() should fail for a missing file")
	}
	if errors.GetErrorType(err) != errors.IO {
		t.Errorf("error type = %v, want io", errors.GetErrorType(err))
	}
	if !stderrors.Is(err, os.ErrNotExist) {
		t.Error("IOFailure should wrap os.ErrNotExist")
	}
}
