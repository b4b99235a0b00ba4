// Package api exposes the HTTP surface: the two streaming generation
// endpoints, health probes and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/foodanalyzer/food-analyzer/internal/auth"
	"github.com/foodanalyzer/food-analyzer/internal/budget"
	"github.com/foodanalyzer/food-analyzer/internal/cache"
	"github.com/foodanalyzer/food-analyzer/internal/cost"
	"github.com/foodanalyzer/food-analyzer/internal/domain"
	"github.com/foodanalyzer/food-analyzer/internal/metrics"
	"github.com/foodanalyzer/food-analyzer/internal/notifications"
	"github.com/foodanalyzer/food-analyzer/internal/prompt"
	"github.com/foodanalyzer/food-analyzer/internal/provider"
	"github.com/foodanalyzer/food-analyzer/internal/queue"
	"github.com/foodanalyzer/food-analyzer/internal/ratelimit"
	"github.com/foodanalyzer/food-analyzer/internal/relay"
	"github.com/foodanalyzer/food-analyzer/internal/repository"
	"github.com/foodanalyzer/food-analyzer/internal/router"
	"github.com/foodanalyzer/food-analyzer/internal/telemetry"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	summaryMaxTokens = 500
	recipeMaxTokens  = 1000
	temperature      = 0.5

	defaultLanguage = "english"
)

// Relayer is the streaming engine behind both endpoints. Satisfied by
// relay.Relay.
type Relayer interface {
	Generate(ctx context.Context, req provider.Request, w io.Writer) (string, error)
	GenerateDeferred(ctx context.Context, req provider.Request, marker string, w io.Writer) (string, error)
	Replay(ctx context.Context, text string, w io.Writer) error
}

type HandlerConfig struct {
	Products    repository.ProductRepository
	Store       cache.Store
	Relay       Relayer
	RateLimiter ratelimit.RateLimiter
	Verifier    *auth.Verifier
	Budget      *budget.Monitor
	Calculator  *cost.Calculator
	Tracker     cost.Tracker
	Publisher   queue.Publisher
	Notifier    notifications.Notifier
	Router      *router.Router

	RateLimitRPM    int
	DefaultProvider string
	ModelID         string
	Checkers        []HealthChecker
}

type Handler struct {
	products    repository.ProductRepository
	store       cache.Store
	relay       Relayer
	rateLimiter ratelimit.RateLimiter
	verifier    *auth.Verifier
	budget      *budget.Monitor
	calculator  *cost.Calculator
	tracker     cost.Tracker
	publisher   queue.Publisher
	notifier    notifications.Notifier
	router      *router.Router

	rateLimitRPM    int
	defaultProvider string
	modelID         string
	mux             *http.ServeMux
}

func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		products:        cfg.Products,
		store:           cfg.Store,
		relay:           cfg.Relay,
		rateLimiter:     cfg.RateLimiter,
		verifier:        cfg.Verifier,
		budget:          cfg.Budget,
		calculator:      cfg.Calculator,
		tracker:         cfg.Tracker,
		publisher:       cfg.Publisher,
		notifier:        cfg.Notifier,
		router:          cfg.Router,
		rateLimitRPM:    cfg.RateLimitRPM,
		defaultProvider: cfg.DefaultProvider,
		modelID:         cfg.ModelID,
		mux:             http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /v1/products/summary", h.handleProductSummary)
	h.mux.HandleFunc("POST /v1/recipes/steps", h.handleRecipeSteps)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /health/live", h.handleHealthLive)
	h.mux.HandleFunc("GET /health/ready", handleHealthReadyWithCheckers(cfg.Checkers, 5*time.Second))
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleProductSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	requestID := requestID(r)

	ctx, span := telemetry.StartSpan(ctx, "product_summary")
	defer span.End()

	status := "error"
	defer func() {
		metrics.RecordRequest("summary", status, time.Since(start).Seconds())
	}()

	if !h.authorize(w, r, requestID) {
		status = "unauthorized"
		return
	}
	if !h.throttle(w, r, requestID) {
		status = "rate_limited"
		return
	}

	var req domain.SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		status = "bad_request"
		return
	}
	if req.Language == "" {
		req.Language = defaultLanguage
	}

	telemetry.AddSummaryAttributes(span, req.ProductCode, req.Language, requestID)

	allergyKeys := domain.ActiveKeys(req.Allergies)
	prefKeys := domain.ActiveKeys(req.Preferences)

	product, err := h.products.GetByCode(ctx, req.ProductCode, req.Language)
	if err != nil && !errors.Is(err, domain.ErrProductNotFound) {
		slog.Error("product lookup failed", "error", err, "product_code", req.ProductCode, "request_id", requestID)
		err = domain.ErrProductNotFound
	}
	if err == nil && !product.Complete() {
		err = domain.ErrProductIncomplete
	}
	if err != nil {
		// No record, or one too sparse to summarize. The caller treats an
		// empty body as "nothing to say about this product".
		slog.Info("skipping generation",
			"reason", err,
			"product_code", req.ProductCode,
			"language", req.Language,
			"request_id", requestID,
		)
		metrics.ProductsNotFound.Inc()
		w.Header().Set("X-Request-ID", requestID)
		w.WriteHeader(http.StatusOK)
		status = "not_found"
		return
	}

	key := cache.Key(req.ProductCode, allergyKeys, prefKeys, req.Language)

	stored, hit, err := h.store.Get(ctx, req.ProductCode, key)
	if err != nil {
		slog.Error("summary store lookup failed", "error", err, "request_id", requestID)
		telemetry.AddErrorAttribute(span, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	telemetry.AddCacheAttribute(span, hit)

	fw := newStreamWriter(w, requestID)
	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	if hit {
		metrics.RecordCacheHit()
		slog.Info("summary cache hit", "product_code", req.ProductCode, "request_id", requestID)

		if err := h.relay.Replay(ctx, stored, fw); err != nil {
			slog.Warn("replay interrupted", "error", err, "request_id", requestID)
			return
		}
		h.publishUsage(ctx, "summary", req.ProductCode, req.Language, requestID, "", true, 0, start)
		status = "ok"
		return
	}

	metrics.RecordCacheMiss()

	if err := h.allowSpend(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "generation budget exceeded")
		status = "budget_exceeded"
		return
	}

	promptText := prompt.ProductSummary(prompt.SummaryInput{
		Allergies:   strings.Join(allergyKeys, ", "),
		Preferences: strings.Join(prefKeys, ", "),
		HealthGoal:  req.HealthGoal,
		Religion:    req.Religion,
		Product:     product,
		Language:    req.Language,
	})

	genReq := provider.Request{
		Prompt:      promptText,
		MaxTokens:   summaryMaxTokens,
		Temperature: temperature,
	}

	summary, err := h.relay.Generate(ctx, genReq, fw)
	if err != nil {
		slog.Error("summary generation failed", "error", err, "product_code", req.ProductCode, "request_id", requestID)
		telemetry.AddErrorAttribute(span, err)
		h.notifyFailure(ctx, "summary", req.ProductCode, requestID, err)
		// The caller still gets the fallback text on its open stream.
		fw.Write([]byte(summary))
		return
	}

	telemetry.AddProviderAttribute(span, h.defaultProvider)

	if ctx.Err() != nil {
		// The client went away mid-stream; the accumulated text may be
		// truncated and must not be cached as a complete answer.
		slog.Warn("client disconnected during generation, summary not stored",
			"product_code", req.ProductCode,
			"request_id", requestID,
		)
		status = "disconnected"
		return
	}

	if err := h.store.Put(ctx, req.ProductCode, key, summary); err != nil {
		slog.Warn("failed to store summary", "error", err, "request_id", requestID)
	}

	costUSD := h.recordCost(ctx, promptText, summary, requestID, req.ProductCode, start)
	h.publishUsage(ctx, "summary", req.ProductCode, req.Language, requestID, h.defaultProvider, false, costUSD, start)
	h.checkBudget(ctx)

	slog.Info("summary generated",
		"product_code", req.ProductCode,
		"language", req.Language,
		"request_id", requestID,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	status = "ok"
}

func (h *Handler) handleRecipeSteps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	requestID := requestID(r)

	ctx, span := telemetry.StartSpan(ctx, "recipe_steps")
	defer span.End()

	status := "error"
	defer func() {
		metrics.RecordRequest("recipe", status, time.Since(start).Seconds())
	}()

	if !h.authorize(w, r, requestID) {
		status = "unauthorized"
		return
	}
	if !h.throttle(w, r, requestID) {
		status = "rate_limited"
		return
	}

	var req domain.RecipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		status = "bad_request"
		return
	}
	if req.Language == "" {
		req.Language = defaultLanguage
	}

	if err := h.allowSpend(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "generation budget exceeded")
		status = "budget_exceeded"
		return
	}

	promptText := prompt.RecipeSteps(req.Language, req.Recipe)

	genReq := provider.Request{
		System:        prompt.RecipeSystem,
		Prompt:        promptText,
		MaxTokens:     recipeMaxTokens,
		Temperature:   temperature,
		StopSequences: []string{prompt.AnswerStopSequence},
	}

	fw := newStreamWriter(w, requestID)
	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	steps, err := h.relay.GenerateDeferred(ctx, genReq, prompt.ThinkingCloseTag, fw)
	if err != nil {
		slog.Error("recipe generation failed", "error", err, "recipe", req.Recipe.Title, "request_id", requestID)
		telemetry.AddErrorAttribute(span, err)
		h.notifyFailure(ctx, "recipe", req.Recipe.Title, requestID, err)
		fw.Write([]byte(steps))
		return
	}

	telemetry.AddProviderAttribute(span, h.defaultProvider)

	costUSD := h.recordCost(ctx, prompt.RecipeSystem+promptText, steps, requestID, "", start)
	h.publishUsage(ctx, "recipe", "", req.Language, requestID, h.defaultProvider, false, costUSD, start)
	h.checkBudget(ctx)

	slog.Info("recipe steps generated",
		"recipe", req.Recipe.Title,
		"language", req.Language,
		"request_id", requestID,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	status = "ok"
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, requestID string) bool {
	if h.verifier == nil || h.verifier.Open() {
		return true
	}
	if err := h.verifier.Verify(extractAPIKey(r)); err != nil {
		slog.Warn("invalid API key", "request_id", requestID)
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return false
	}
	return true
}

func (h *Handler) throttle(w http.ResponseWriter, r *http.Request, requestID string) bool {
	if h.rateLimiter == nil || h.rateLimitRPM <= 0 {
		return true
	}

	clientIP := clientIP(r)
	allowed, remaining, resetAt, err := h.rateLimiter.Allow(r.Context(), clientIP, h.rateLimitRPM)
	if err != nil {
		slog.Error("rate limiter error", "error", err, "request_id", requestID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return false
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(h.rateLimitRPM))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", resetAt.Format(time.RFC3339))

	if !allowed {
		slog.Warn("rate limit exceeded", "client_ip", clientIP, "request_id", requestID)
		metrics.RateLimitHits.Inc()
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	return true
}

func (h *Handler) allowSpend(ctx context.Context) error {
	if h.budget == nil {
		return nil
	}
	err := h.budget.Allow(ctx)
	if errors.Is(err, domain.ErrBudgetExceeded) {
		slog.Warn("daily generation budget exceeded, refusing generation")
		return err
	}
	if err != nil {
		// Accounting trouble should not take the service down.
		slog.Error("budget check failed", "error", err)
	}
	return nil
}

func (h *Handler) checkBudget(ctx context.Context) {
	if h.budget == nil {
		return
	}
	if _, err := h.budget.Check(ctx); err != nil {
		slog.Error("budget threshold check failed", "error", err)
	}
}

func (h *Handler) recordCost(ctx context.Context, promptText, output, requestID, productCode string, start time.Time) float64 {
	if h.calculator == nil {
		return 0
	}

	costUSD := h.calculator.Calculate(h.modelID,
		cost.EstimateTokens(promptText),
		cost.EstimateTokens(output),
	)
	metrics.RecordGenerationCost(h.defaultProvider, h.modelID, costUSD)

	if h.tracker != nil {
		record := cost.UsageRecord{
			RequestID:   requestID,
			ProductCode: productCode,
			Model:       h.modelID,
			Provider:    h.defaultProvider,
			CostUSD:     costUSD,
			LatencyMs:   time.Since(start).Milliseconds(),
			Timestamp:   time.Now(),
		}
		if err := h.tracker.Record(ctx, record); err != nil {
			slog.Warn("failed to record usage", "error", err, "request_id", requestID)
		}
	}
	return costUSD
}

func (h *Handler) publishUsage(ctx context.Context, endpoint, productCode, language, requestID, providerID string, cacheHit bool, costUSD float64, start time.Time) {
	if h.publisher == nil {
		return
	}

	event := queue.SummaryEvent{
		RequestID:   requestID,
		Endpoint:    endpoint,
		ProductCode: productCode,
		Language:    language,
		Provider:    providerID,
		CacheHit:    cacheHit,
		CostUSD:     costUSD,
		LatencyMs:   time.Since(start).Milliseconds(),
		CreatedAt:   time.Now(),
	}
	if err := h.publisher.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish usage event", "error", err, "request_id", requestID)
	}
}

func (h *Handler) notifyFailure(ctx context.Context, endpoint, subject, requestID string, genErr error) {
	if h.notifier == nil {
		return
	}

	notification := notifications.Notification{
		Type:    notifications.NotificationGenerationFailed,
		Message: "generation failed, caller received the fallback text",
		Data: map[string]interface{}{
			"endpoint":   endpoint,
			"subject":    subject,
			"request_id": requestID,
			"error":      genErr.Error(),
		},
	}
	if err := h.notifier.Send(ctx, notification); err != nil {
		slog.Warn("failed to send failure notification", "error", err, "request_id", requestID)
	}
}

// streamWriter flushes after every write so deltas reach the client as they
// arrive instead of sitting in the response buffer.
type streamWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newStreamWriter(w http.ResponseWriter, requestID string) *streamWriter {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Request-ID", requestID)

	f, _ := w.(http.Flusher)
	return &streamWriter{w: w, f: f}
}

func (s *streamWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if s.f != nil {
		s.f.Flush()
	}
	return n, err
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func extractAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"code":    status,
		},
	})
}

// relay.Relay must keep satisfying Relayer.
var _ Relayer = (*relay.Relay)(nil)
