// Package gateway submits technician-initiated transitions to the
// field-service backend. Every operation validates locally through the
// lifecycle guards before any network call, and applies the transition to
// the job store only upon backend confirmation. Authorization rejections
// are funneled into the shared unauthorized signal.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"

	"fieldservice-backend/internal/auth"
	"fieldservice-backend/internal/lifecycle"
	"fieldservice-backend/internal/metrics"
	"fieldservice-backend/internal/model"
	"fieldservice-backend/internal/normalize"
	"fieldservice-backend/internal/store"
)

// ErrUnknownJob reports an action against an identity the store does not
// hold.
var ErrUnknownJob = errors.New("job not found in working set")

const categoryCacheKey = "solution_categories"

// Config parameterizes the REST upstream.
type Config struct {
	BaseURL     string
	Headers     map[string]string
	Timeout     time.Duration
	CategoryTTL time.Duration
}

// Gateway is the action boundary between the UI and the backend.
type Gateway struct {
	cfg     Config
	auth    *auth.Context
	engine  *lifecycle.Engine
	store   *store.Store
	metrics *metrics.Collector
	client  *http.Client
	cache   *cache.Cache
}

// New creates a gateway for the given upstream and session context.
func New(cfg Config, authCtx *auth.Context, engine *lifecycle.Engine, s *store.Store, m *metrics.Collector) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CategoryTTL <= 0 {
		cfg.CategoryTTL = time.Hour
	}
	return &Gateway{
		cfg:     cfg,
		auth:    authCtx,
		engine:  engine,
		store:   s,
		metrics: m,
		client:  &http.Client{Timeout: cfg.Timeout},
		cache:   cache.New(cfg.CategoryTTL, 2*cfg.CategoryTTL),
	}
}

// apiEnvelope models the upstream's response wrapper.
type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// SubmitStart validates and submits a start transition. The store is only
// updated with the backend-confirmed timestamp.
func (g *Gateway) SubmitStart(ctx context.Context, key model.JobKey, f lifecycle.StartFields) error {
	job, ok := g.store.Get(key)
	if !ok {
		return ErrUnknownJob
	}
	if err := g.engine.ValidateStart(job, f); err != nil {
		return err
	}

	path := "/start-service-visit"
	if key.Kind == model.KindBreakdown {
		path = "/start-breakdown"
	}
	payload := map[string]any{
		"jobId":        key.ID,
		"techCode":     g.auth.Session().TechCode,
		"recallReason": f.RecallReason,
		"meterReading": f.MeterReading,
		"onSite":       f.OnSite,
	}

	var confirmed struct {
		StartedAt string `json:"starT_TIME"`
	}
	if err := g.post(ctx, path, payload, &confirmed); err != nil {
		return err
	}

	g.engine.ConfirmStart(key, f, parseConfirmedTime(confirmed.StartedAt))
	return nil
}

// SubmitComplete validates and submits a complete transition. The category
// guard runs against the backend-provided enumerated list.
func (g *Gateway) SubmitComplete(ctx context.Context, key model.JobKey, f lifecycle.CompleteFields) error {
	job, ok := g.store.Get(key)
	if !ok {
		return ErrUnknownJob
	}
	known, err := g.Categories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load solution categories: %w", err)
	}
	if err := g.engine.ValidateComplete(job, f, known); err != nil {
		return err
	}

	path := "/complete-service-visit"
	if key.Kind == model.KindBreakdown {
		path = "/complete-breakdown"
	}
	payload := map[string]any{
		"jobId":            key.ID,
		"techCode":         g.auth.Session().TechCode,
		"solutionCategory": f.SolutionCategory,
		"solutionText":     f.SolutionText,
		"meterReading":     f.MeterReading,
	}

	var confirmed struct {
		CompletedAt string `json:"finisH_TIME"`
	}
	if err := g.post(ctx, path, payload, &confirmed); err != nil {
		return err
	}

	g.engine.ConfirmComplete(key, f, parseConfirmedTime(confirmed.CompletedAt))
	return nil
}

// SubmitRecall submits a recall justification for a due item. The on-site
// flag is advisory data passed through to the backend; it never gates the
// transition.
func (g *Gateway) SubmitRecall(ctx context.Context, key model.JobKey, reason string, onSite bool) error {
	job, ok := g.store.Get(key)
	if !ok {
		return ErrUnknownJob
	}
	if err := g.engine.ValidateRecall(job, reason); err != nil {
		return err
	}

	payload := map[string]any{
		"jobId":    key.ID,
		"techCode": g.auth.Session().TechCode,
		"reason":   reason,
		"onSite":   onSite,
	}
	if err := g.post(ctx, "/submit-recall", payload, nil); err != nil {
		return err
	}

	g.engine.ConfirmRecall(key, reason)
	return nil
}

// Categories returns the valid solution-category set, fetched once and
// cached for the configured TTL.
func (g *Gateway) Categories(ctx context.Context) (lifecycle.CategorySet, error) {
	names, err := g.CategoryNames(ctx)
	if err != nil {
		return nil, err
	}
	return lifecycle.NewCategorySet(names), nil
}

// CategoryNames returns the cached category list as served by the backend.
func (g *Gateway) CategoryNames(ctx context.Context) ([]string, error) {
	if cached, found := g.cache.Get(categoryCacheKey); found {
		return cached.([]string), nil
	}

	var names []string
	if err := g.get(ctx, "/solution-categories", &names); err != nil {
		return nil, err
	}
	g.cache.Set(categoryCacheKey, names, cache.DefaultExpiration)
	return names, nil
}

// FetchWorkingSet pulls the technician's current jobs and replaces them in
// the store, last-write-wins. This is the cold-start and manual-refresh
// path; gaps left by missed push frames are healed here.
func (g *Gateway) FetchWorkingSet(ctx context.Context) (int, error) {
	var data struct {
		Services   []map[string]any `json:"services"`
		Breakdowns []map[string]any `json:"breakdowns"`
	}
	path := "/jobs?techCode=" + url.QueryEscape(g.auth.Session().TechCode)
	if err := g.get(ctx, path, &data); err != nil {
		return 0, err
	}

	count := 0
	for _, raw := range data.Services {
		job := normalize.MapServiceJob(raw)
		if job.ID == "" {
			continue
		}
		g.store.Upsert(job, store.TriggerRefresh)
		count++
	}
	for _, raw := range data.Breakdowns {
		job := normalize.MapBreakdownJob(raw)
		if job.ID == "" {
			continue
		}
		g.store.Upsert(job, store.TriggerRefresh)
		count++
	}
	return count, nil
}

func (g *Gateway) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req, out)
}

func (g *Gateway) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return g.do(req, out)
}

func (g *Gateway) do(req *http.Request, out any) error {
	for key, value := range g.cfg.Headers {
		req.Header.Set(key, value)
	}
	g.auth.Authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if g.metrics != nil {
			g.metrics.RecordUnauthorized()
		}
		g.auth.SignalUnauthorized("gateway")
		return auth.ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal api response: %w", err)
	}
	if envelope.Code != 0 {
		return fmt.Errorf("API returned non-zero application code %d: %s", envelope.Code, envelope.Message)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to unmarshal api data: %w", err)
		}
	}
	return nil
}

// parseConfirmedTime parses a backend-confirmed timestamp, falling back to
// local time when the backend omits one.
func parseConfirmedTime(raw string) time.Time {
	if raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
