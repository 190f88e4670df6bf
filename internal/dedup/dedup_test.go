package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type memChecker map[string]bool

func (m memChecker) Exists(_ context.Context, url string) (bool, error) {
	return m[url], nil
}

type failingChecker struct{}

func (failingChecker) Exists(context.Context, string) (bool, error) {
	return false, errors.New("db down")
}

type memCache struct {
	seen map[string]bool
	err  error
}

func (c *memCache) Seen(_ context.Context, url string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return c.seen[url], nil
}

func (c *memCache) Remember(_ context.Context, url string) error {
	c.seen[url] = true
	return nil
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"https://www.theblockbeats.info/flash/123", "https://www.theblockbeats.info/flash/123"},
		{"https://www.theblockbeats.info/flash/123/", "https://www.theblockbeats.info/flash/123"},
		{"HTTPS://WWW.Jinse.cn/lives/1.html#top", "https://www.jinse.cn/lives/1.html"},
		{"https://example.com:443/a?utm_source=x&utm_medium=y", "https://example.com/a"},
		{"http://example.com:80/a?b=2&a=1&spm=abc", "http://example.com/a?a=1&b=2"},
		{"http://example.com:8080/a", "http://example.com:8080/a"},
		{"https://x.test/a?source=12&id=3&from=tg", "https://x.test/a?id=3&source=12"},
		{"https://x.test/a?timestamp=1700000000&fbclid=abc", "https://x.test/a?timestamp=1700000000"},
	}

	for _, tt := range tests {
		got, err := NormalizeURL(tt.in)
		if err != nil {
			t.Errorf("NormalizeURL(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}

func TestNormalizeURLInvalid(t *testing.T) {
	for _, in := range []string{"", "/relative/path", "::"} {
		if _, err := NormalizeURL(in); err == nil {
			t.Errorf("NormalizeURL(%q): expected error", in)
		}
	}
}

func TestRunScope(t *testing.T) {
	d := New(nil, nil, zerolog.Nop())
	ctx := context.Background()

	dup, _ := d.IsDuplicate(ctx, "https://a/1", ScopeRun)
	if dup {
		t.Error("first sighting must not be a duplicate")
	}
	dup, _ = d.IsDuplicate(ctx, "https://a/1", ScopeRun)
	if !dup {
		t.Error("second sighting must be a duplicate")
	}

	// Новый прогон - новый набор
	d = New(nil, nil, zerolog.Nop())
	if dup, _ := d.IsDuplicate(ctx, "https://a/1", ScopeRun); dup {
		t.Error("run scope must reset between runs")
	}
}

func TestAllTimeScope(t *testing.T) {
	ctx := context.Background()
	cache := &memCache{seen: map[string]bool{"https://a/cached": true}}
	d := New(memChecker{"https://a/stored": true}, cache, zerolog.Nop())

	tests := []struct {
		url      string
		expected bool
	}{
		{"https://a/cached", true},
		{"https://a/stored", true},
		{"https://a/new", false},
	}

	for _, tt := range tests {
		got, err := d.IsDuplicate(ctx, tt.url, ScopeAllTime)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.expected {
			t.Errorf("IsDuplicate(%q) = %v, want %v", tt.url, got, tt.expected)
		}
	}

	if !cache.seen["https://a/stored"] {
		t.Error("url found in the store should be remembered in the cache")
	}
}

func TestAllTimeScopeCacheFailureFallsThrough(t *testing.T) {
	d := New(memChecker{"https://a/stored": true}, &memCache{seen: map[string]bool{}, err: errors.New("redis down")}, zerolog.Nop())

	dup, err := d.IsDuplicate(context.Background(), "https://a/stored", ScopeAllTime)
	if err != nil || !dup {
		t.Errorf("expected store lookup after cache failure, got %v, %v", dup, err)
	}
}

func TestAllTimeScopeStoreError(t *testing.T) {
	d := New(failingChecker{}, nil, zerolog.Nop())

	if _, err := d.IsDuplicate(context.Background(), "https://a/1", ScopeAllTime); err == nil {
		t.Error("expected store error")
	}
}
