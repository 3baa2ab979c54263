// Package keywords loads the search keyword list.
package keywords

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultKeywords is used when no keyword file yields any keyword.
var DefaultKeywords = []string{"warframe"}

// Load reads one keyword per line from path. Blank lines and lines starting
// with '#' are ignored. A missing file or a file without keywords falls back to
// DefaultKeywords with a warning; other read errors are returned.
func Load(path string, logger zerolog.Logger) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn().
			Str("path", path).
			Strs("default", DefaultKeywords).
			Msg("Keywords file not found - using default keywords")
		return defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open keywords file: %w", err)
	}
	defer f.Close()

	keywords, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read keywords file %s: %w", path, err)
	}

	if len(keywords) == 0 {
		logger.Warn().
			Str("path", path).
			Strs("default", DefaultKeywords).
			Msg("No keywords found - using default keywords")
		return defaults(), nil
	}

	logger.Info().
		Str("path", path).
		Int("count", len(keywords)).
		Msg("Loaded keywords")
	return keywords, nil
}

// Parse reads keywords from r using the same rules as Load.
func Parse(r io.Reader) ([]string, error) {
	var keywords []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keywords = append(keywords, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return keywords, nil
}

func defaults() []string {
	out := make([]string, len(DefaultKeywords))
	copy(out, DefaultKeywords)
	return out
}
