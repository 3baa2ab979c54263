package sink

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/helix-channel-crawler/internal/extract"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func sampleRecords() []extract.ChannelRecord {
	return []extract.ChannelRecord{
		{ChannelID: "1", Login: "alpha", DisplayName: "Älpha <3", Keyword: "kw", Stream: &extract.Stream{ID: "s", Tags: []string{}}},
		{ChannelID: "2", Login: "beta", Keyword: "kw"},
	}
}

func TestJSONFile_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out", "channels.json")
	s := NewJSONFile(path, zerolog.Nop())

	if err := s.Write(context.Background(), sampleRecords()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	out := string(raw)

	if !strings.HasPrefix(out, "[\n    {\n        \"channelId\": \"1\"") {
		t.Errorf("unexpected indentation:\n%s", out)
	}
	if !strings.Contains(out, "Älpha <3") {
		t.Error("non-ASCII and HTML characters should be written verbatim")
	}

	var decoded []extract.ChannelRecord
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(decoded) != 2 || decoded[1].Login != "beta" {
		t.Errorf("decoded = %+v", decoded)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("output dir has %d entries, want only the output file", len(entries))
	}
}

func TestJSONFile_WriteEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := NewJSONFile(path, zerolog.Nop()).Write(context.Background(), nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	raw, _ := os.ReadFile(path)
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Errorf("content = %q, want []", raw)
	}
}

func TestJSONFile_WriteIntoFileFails(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := NewJSONFile(filepath.Join(blocker, "out.json"), zerolog.Nop()).Write(context.Background(), sampleRecords())
	if err == nil {
		t.Error("Write() error = nil, want error")
	}
}

type recordingSink struct {
	got []extract.ChannelRecord
	err error
}

func (r *recordingSink) Write(_ context.Context, records []extract.ChannelRecord) error {
	r.got = records
	return r.err
}

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	failing := &recordingSink{err: boom}
	ok := &recordingSink{}

	err := Multi(failing, ok).Write(context.Background(), sampleRecords())

	if !errors.Is(err, boom) {
		t.Errorf("Write() error = %v, want boom", err)
	}
	if len(ok.got) != 2 {
		t.Errorf("second sink got %d records, want 2", len(ok.got))
	}
	if err := Multi().Write(context.Background(), nil); err != nil {
		t.Errorf("empty Multi Write() = %v, want nil", err)
	}
}

func TestNewRedisSink(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: "helix:crawl:run-1"},
		{prefix: "custom", want: "custom:run-1"},
	}
	for _, tt := range tests {
		s := NewRedisSink(client, tt.prefix, "run-1", 0, zerolog.Nop())
		if s.Key() != tt.want {
			t.Errorf("Key() = %q, want %q", s.Key(), tt.want)
		}
	}

	// Empty writes never touch Redis.
	s := NewRedisSink(client, "", "run-1", 0, zerolog.Nop())
	if err := s.Write(context.Background(), nil); err != nil {
		t.Errorf("Write(nil) error = %v", err)
	}
}

func TestNewRedisSink_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisSink should panic with nil redis client")
		}
	}()
	NewRedisSink(nil, "", "run", 0, zerolog.Nop())
}
