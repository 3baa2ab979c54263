package keywords

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParse(t *testing.T) {
	input := "warframe\n\n  # comment\n  speedrun  \n#another\nretro games\r\n"

	got, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []string{"warframe", "speedrun", "retro games"}
	if len(got) != len(want) {
		t.Fatalf("Parse() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keyword[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content *string
		want    []string
	}{
		{name: "file with keywords", content: ptr("alpha\nbeta\n"), want: []string{"alpha", "beta"}},
		{name: "only comments", content: ptr("# nothing\n\n"), want: []string{"warframe"}},
		{name: "missing file", content: nil, want: []string{"warframe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".txt")
			if tt.content != nil {
				if err := os.WriteFile(path, []byte(*tt.content), 0o644); err != nil {
					t.Fatalf("WriteFile() error = %v", err)
				}
			}

			got, err := Load(path, zerolog.Nop())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Load() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoad_DefaultsAreCopied(t *testing.T) {
	got, _ := Load(filepath.Join(t.TempDir(), "missing.txt"), zerolog.Nop())
	got[0] = "mutated"

	if DefaultKeywords[0] != "warframe" {
		t.Errorf("DefaultKeywords mutated to %v", DefaultKeywords)
	}
}

func TestLoad_DirectoryIsError(t *testing.T) {
	if _, err := Load(t.TempDir(), zerolog.Nop()); err == nil {
		t.Error("Load(directory) error = nil, want error")
	}
}

func ptr(s string) *string { return &s }
