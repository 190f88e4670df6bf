package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/dedup"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/model"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/storage"
	"github.com/samber/lo"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	defaultRunsPage = 20
)

func (h *Handler) HealthCheck(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		_ = c.Error(err)
		status, code = "database unavailable", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GET /api/articles?source=&keyword=&search=&since=&until=&order=&limit=&offset=
func (h *Handler) ListArticles(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := storage.ParseOrder(c.Query("order"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit, err := intQuery(c, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must be between 1 and %d", maxPageSize)})
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must not be negative"})
		return
	}

	ctx := c.Request.Context()

	total, err := h.articles.Count(ctx, filter)
	if err != nil {
		h.internalError(c, err)
		return
	}

	articles, err := h.articles.Query(ctx, filter, order, limit, offset)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, articlesResponse{
		Total:  total,
		Limit:  limit,
		Offset: offset,
		Articles: lo.Map(articles, func(a model.Article, _ int) articleResponse {
			return newArticleResponse(a)
		}),
	})
}

// GET /api/articles/lookup?url=
// url нормализуется так же, как при сохранении
func (h *Handler) LookupArticle(c *gin.Context) {
	url, err := dedup.NormalizeURL(c.Query("url"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	article, err := h.articles.ByURL(c.Request.Context(), url)
	if err != nil {
		h.internalError(c, err)
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		return
	}

	c.JSON(http.StatusOK, newArticleResponse(*article))
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	bySource, err := h.articles.CountBySource(ctx)
	if err != nil {
		h.internalError(c, err)
		return
	}

	runs, err := h.runs.Recent(ctx, 1)
	if err != nil {
		h.internalError(c, err)
		return
	}

	resp := statsResponse{
		Total:    lo.Sum(lo.Values(bySource)),
		BySource: bySource,
	}
	if len(runs) > 0 {
		report := runs[0].Report()
		resp.LastRun = &report
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListRuns(c *gin.Context) {
	limit, err := intQuery(c, "limit", defaultRunsPage)
	if err != nil || limit < 1 || limit > maxPageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must be between 1 and %d", maxPageSize)})
		return
	}

	runs, err := h.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, lo.Map(runs, func(run model.RunSummary, _ int) model.RunReport {
		return run.Report()
	}))
}

// Запускает прогон в фоне. Итог появится в GET /api/runs
func (h *Handler) StartRun(c *gin.Context) {
	if h.trigger == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "manual runs are disabled"})
		return
	}

	runID, ok := h.trigger()
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "run already in progress"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "status": "started"})
}

func (h *Handler) internalError(c *gin.Context, err error) {
	_ = c.Error(err)

	var persistErr *storage.PersistError
	if errors.As(err, &persistErr) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func parseFilter(c *gin.Context) (storage.ArticleFilter, error) {
	filter := storage.ArticleFilter{
		Source:  c.Query("source"),
		Keyword: c.Query("keyword"),
		Search:  c.Query("search"),
	}

	since, err := timeQuery(c, "since")
	if err != nil {
		return filter, err
	}
	until, err := timeQuery(c, "until")
	if err != nil {
		return filter, err
	}
	if since != nil && until != nil && !since.Before(*until) {
		return filter, errors.New("since must be before until")
	}

	filter.Since = since
	filter.Until = until

	return filter, nil
}

// Принимает RFC3339 или просто дату YYYY-MM-DD
func timeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}

	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}

	return nil, fmt.Errorf("invalid %s: expected RFC3339 or YYYY-MM-DD", key)
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
