package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/kovalyov-valentin/crypto-news-scraper/internal/retry"
	"github.com/rs/zerolog"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	// Больше этого со страницы не читаем
	maxBodySize = 8 << 20
)

// Ошибка загрузки страницы
type Error struct {
	URL string
	// Код ответа последней попытки, 0 если ответа не было
	StatusCode int
	Err        error
	// Временная ошибка (таймаут, 5xx, 429), которую имело смысл повторять
	Transient bool
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTP клиент для страниц источников
type Fetcher struct {
	client    *http.Client
	userAgent string
	policy    retry.Policy
	log       zerolog.Logger
}

func New(timeout time.Duration, userAgent string, policy retry.Policy, log zerolog.Logger) *Fetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		policy:    policy,
		log:       log.With().Str("component", "fetcher").Logger(),
	}
}

// Загружает страницу. Таймауты и 5xx повторяются с экспоненциальной паузой,
// 404 и прочие 4xx сразу возвращаются как окончательная ошибка
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		if err == nil {
			err = errors.New("malformed url")
		}
		return nil, &Error{URL: rawURL, Err: err}
	}

	var body []byte
	err = f.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 0 {
			f.log.Debug().Str("url", rawURL).Int("attempt", attempt).Msg("retrying fetch")
		}

		b, err := f.get(ctx, rawURL)
		if err != nil {
			return classify(err)
		}

		body = b
		return nil
	})
	if err != nil {
		var fetchErr *Error
		if errors.As(err, &fetchErr) {
			return nil, fetchErr
		}
		return nil, &Error{URL: rawURL, Err: err, Transient: isTransient(err)}
	}

	return body, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}

	// Заголовки как у браузера, иначе часть сайтов отдает заглушку
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err, Transient: isTransient(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Дочитываем тело, чтобы соединение вернулось в пул
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

		return nil, &Error{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
			Transient:  isRetryableStatus(resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err, Transient: true}
	}

	return body, nil
}

// Переводит ошибку в язык политики повторов
func classify(err error) error {
	var fetchErr *Error
	if !errors.As(err, &fetchErr) {
		return err
	}

	switch {
	case fetchErr.StatusCode == http.StatusTooManyRequests:
		return retry.Throttle(fetchErr)
	case fetchErr.Transient:
		return fetchErr
	default:
		return retry.Stop(fetchErr)
	}
}

func isRetryableStatus(code int) bool {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
