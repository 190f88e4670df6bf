package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type mapFetcher map[string]string

func (m mapFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	body, ok := m[url]
	if !ok {
		return nil, errors.New("not found: " + url)
	}
	return []byte(body), nil
}

func TestHTMLListing(t *testing.T) {
	rule := Rule{
		Name:         "Jinse",
		Kind:         ListingHTML,
		ListingURL:   "https://www.jinse.cn/lives",
		LinkSelector: "a[href*='/lives/']",
		LinkPattern:  `/lives/\d+\.html`,
	}

	page := `<html><body>
		<a href="/lives/300.html">第一条</a>
		<a href="/lives/300.html"><img src="x.png"></a>
		<a href="https://www.jinse.cn/lives/299.html">第二条</a>
		<a href="/lives/">全部快讯</a>
		<a href="/news/1.html">新闻</a>
	</body></html>`

	src, err := New(rule)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	links, err := src.Listing(context.Background(), mapFetcher{rule.ListingURL: page})
	if err != nil {
		t.Fatalf("Listing: %v", err)
	}

	expected := []string{
		"https://www.jinse.cn/lives/300.html",
		"https://www.jinse.cn/lives/299.html",
	}
	if !reflect.DeepEqual(links, expected) {
		t.Errorf("got %v, want %v", links, expected)
	}
}

func TestSequentialListing(t *testing.T) {
	rule := Rule{
		Name:               "BlockBeats",
		Kind:               ListingSequential,
		ListingURL:         "https://www.theblockbeats.info/newsflash",
		LinkPattern:        `/flash/(\d+)`,
		ArticleURLTemplate: "https://www.theblockbeats.info/flash/%d",
		Window:             3,
	}

	page := `<a href="/flash/1001">a</a><script>{"url":"/flash/1003"}</script><a href="/flash/1002">b</a>`

	src, err := New(rule)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	links, err := src.Listing(context.Background(), mapFetcher{rule.ListingURL: page})
	if err != nil {
		t.Fatalf("Listing: %v", err)
	}

	expected := []string{
		"https://www.theblockbeats.info/flash/1003",
		"https://www.theblockbeats.info/flash/1002",
		"https://www.theblockbeats.info/flash/1001",
	}
	if !reflect.DeepEqual(links, expected) {
		t.Errorf("got %v, want %v", links, expected)
	}
}

func TestSequentialListingWithoutIDs(t *testing.T) {
	rule := Builtin()[0]

	src, err := New(rule)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := src.Listing(context.Background(), mapFetcher{rule.ListingURL: "<html></html>"}); err == nil {
		t.Error("expected error for listing without ids")
	}
}

func TestRSSListing(t *testing.T) {
	rule := Rule{
		Name:       "Feed",
		Kind:       ListingRSS,
		ListingURL: "https://example.com/rss.xml",
	}

	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>News</title><link>https://example.com</link><description>d</description>
<item><title>One</title><link>https://example.com/a/1</link></item>
<item><title>Two</title><link>https://example.com/a/2</link></item>
</channel></rss>`

	src, err := New(rule)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	links, err := src.Listing(context.Background(), mapFetcher{rule.ListingURL: feed})
	if err != nil {
		t.Fatalf("Listing: %v", err)
	}

	expected := []string{"https://example.com/a/1", "https://example.com/a/2"}
	if !reflect.DeepEqual(links, expected) {
		t.Errorf("got %v, want %v", links, expected)
	}
}

func TestLoadRulesOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")

	content := `sources:
  - name: jinse
    kind: rss
    listing_url: https://www.jinse.cn/rss
  - name: Odaily
    kind: html
    listing_url: https://www.odaily.news/newsflash
    link_selector: "a[href*='/newsflash/']"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}

	if len(rules) != len(Builtin())+1 {
		t.Fatalf("expected %d rules, got %d", len(Builtin())+1, len(rules))
	}

	selected, err := Select(rules, []string{"Jinse", "odaily"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if selected[0].Kind != ListingRSS || selected[0].ListingURL != "https://www.jinse.cn/rss" {
		t.Errorf("builtin rule was not overridden: %+v", selected[0])
	}
	if selected[1].Name != "Odaily" {
		t.Errorf("unexpected second rule: %+v", selected[1])
	}
}

func TestSelectUnknownSource(t *testing.T) {
	if _, err := Select(Builtin(), []string{"Nope"}); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{"builtin", Builtin()[0], false},
		{"no name", Rule{Kind: ListingHTML, ListingURL: "https://x"}, true},
		{"no listing", Rule{Name: "x", Kind: ListingHTML}, true},
		{"unknown kind", Rule{Name: "x", Kind: "ftp", ListingURL: "https://x"}, true},
		{"sequential without template", Rule{Name: "x", Kind: ListingSequential, ListingURL: "https://x", LinkPattern: `(\d+)`}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.rule.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
