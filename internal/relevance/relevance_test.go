package relevance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kovalyov-valentin/crypto-news-scraper/internal/model"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/retry"
	"github.com/rs/zerolog"
)

type stubClassifier struct {
	judgment Judgment
	err      error
}

func (s stubClassifier) Classify(context.Context, string, string) (Judgment, error) {
	return s.judgment, s.err
}

func TestMatchKeywords(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		keywords []string
		expected []string
	}{
		{
			name:     "case insensitive and no word boundaries",
			text:     "大量btc被盗，监管部门介入",
			keywords: []string{"BTC", "监管"},
			expected: []string{"BTC", "监管"},
		},
		{
			name:     "configured order",
			text:     "监管 ETH BTC",
			keywords: []string{"BTC", "SOL", "监管"},
			expected: []string{"BTC", "监管"},
		},
		{
			name:     "full width letters",
			text:     "ＢＴＣ 价格上涨",
			keywords: []string{"btc"},
			expected: []string{"btc"},
		},
		{
			name:     "duplicate keywords reported once",
			text:     "Bitcoin",
			keywords: []string{"bitcoin", "BITCOIN"},
			expected: []string{"bitcoin"},
		},
		{
			name:     "no match",
			text:     "天气不错",
			keywords: []string{"BTC"},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchKeywords(tt.text, tt.keywords)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFilterKeywordPath(t *testing.T) {
	f := NewFilter([]string{"BTC", "监管"}, nil, zerolog.Nop())

	d := f.IsRelevant(context.Background(), model.Article{Title: "快讯", BodyText: "大量btc被盗，监管部门介入"})
	if !d.Relevant || d.ViaAI || d.Score != nil {
		t.Errorf("unexpected decision %+v", d)
	}
	if !reflect.DeepEqual(d.Matched, []string{"BTC", "监管"}) {
		t.Errorf("unexpected matches %v", d.Matched)
	}

	d = f.IsRelevant(context.Background(), model.Article{Title: "天气", BodyText: "今天天气不错"})
	if d.Relevant {
		t.Errorf("expected irrelevant, got %+v", d)
	}
}

func TestFilterWithoutKeywordsIsNoop(t *testing.T) {
	f := NewFilter(nil, nil, zerolog.Nop())

	d := f.IsRelevant(context.Background(), model.Article{Title: "anything", BodyText: "at all"})
	if !d.Relevant || len(d.Matched) != 0 {
		t.Errorf("expected pass-through decision, got %+v", d)
	}
}

func TestFilterAIDecides(t *testing.T) {
	f := NewFilter(nil, stubClassifier{judgment: Judgment{Relevant: false, Score: 0.1}}, zerolog.Nop())

	d := f.IsRelevant(context.Background(), model.Article{Title: "t", BodyText: "b"})
	if d.Relevant || !d.ViaAI || d.Score == nil || *d.Score != 0.1 {
		t.Errorf("unexpected decision %+v", d)
	}
	if len(d.Matched) != 0 {
		t.Errorf("ai-only path must not report keywords, got %v", d.Matched)
	}
}

func TestFilterFallsBackOnTimeout(t *testing.T) {
	f := NewFilter([]string{"Test"}, stubClassifier{err: context.DeadlineExceeded}, zerolog.Nop())

	d := f.IsRelevant(context.Background(), model.Article{Title: "Test Article", BodyText: "body"})
	if !d.Relevant || d.ViaAI {
		t.Errorf("expected keyword fallback to keep the article, got %+v", d)
	}
	if !reflect.DeepEqual(d.Matched, []string{"Test"}) {
		t.Errorf("unexpected matches %v", d.Matched)
	}

	d = f.IsRelevant(context.Background(), model.Article{Title: "Other", BodyText: "body"})
	if d.Relevant {
		t.Errorf("expected keyword fallback to drop the article, got %+v", d)
	}
}

func TestParseJudgment(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    Judgment
		wantErr bool
	}{
		{"yes with score", "RELEVANT: yes\nSCORE: 0.82", Judgment{Relevant: true, Score: 0.82}, false},
		{"no", "relevant: No\nscore: 0.1", Judgment{Relevant: false, Score: 0.1}, false},
		{"yes without score", "RELEVANT: yes", Judgment{Relevant: true, Score: 1}, false},
		{"yes with zero score kept", "RELEVANT: yes\nSCORE: 0", Judgment{Relevant: true, Score: 0}, false},
		{"no without score", "RELEVANT: no", Judgment{Relevant: false, Score: 0}, false},
		{"score clamped", "RELEVANT: yes\nSCORE: 7", Judgment{Relevant: true, Score: 1}, false},
		{"garbage", "I think so", Judgment{}, true},
		{"bad value", "RELEVANT: maybe", Judgment{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseJudgment(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func testPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
}

func TestOpenAIClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"RELEVANT: yes\nSCORE: 0.9"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClassifier(OpenAIOptions{APIKey: "test-key", BaseURL: srv.URL + "/v1", Policy: testPolicy()}, zerolog.Nop())

	j, err := c.Classify(context.Background(), "BTC", "body")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !j.Relevant || j.Score != 0.9 {
		t.Errorf("unexpected judgment %+v", j)
	}
}

func TestOpenAIClassifierUnauthorizedIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClassifier(OpenAIOptions{APIKey: "bad", BaseURL: srv.URL + "/v1", Policy: testPolicy()}, zerolog.Nop())

	_, err := c.Classify(context.Background(), "BTC", "body")

	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("unauthorized must not be retried, got %d calls", calls)
	}
}

func TestNewOpenAIClassifierDisabledWithoutKey(t *testing.T) {
	if c := NewOpenAIClassifier(OpenAIOptions{}, zerolog.Nop()); c != nil {
		t.Error("expected nil classifier without api key")
	}
}
