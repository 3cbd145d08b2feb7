package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"medagent/events"
	"medagent/logger"
)

// LangfuseTracer implements the Tracer interface against the Langfuse
// ingestion API. Events are queued and delivered in batches by a background
// goroutine; a full queue drops events rather than blocking the stream path.
type LangfuseTracer struct {
	client    *http.Client
	host      string
	publicKey string
	secretKey string

	mu     sync.Mutex
	traces map[string]*langfuseTrace

	eventQueue chan *langfuseEvent
	stopCh     chan struct{}
	wg         sync.WaitGroup

	logger logger.Logger
}

// langfuseTrace represents a trace in Langfuse ingestion format
type langfuseTrace struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Input     interface{}            `json:"input,omitempty"`
	Output    interface{}            `json:"output,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	UserID    string                 `json:"userId,omitempty"`
	SessionID string                 `json:"sessionId,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// langfuseObservation represents a span, event or generation observation
type langfuseObservation struct {
	ID                  string                 `json:"id"`
	TraceID             string                 `json:"traceId"`
	ParentObservationID string                 `json:"parentObservationId,omitempty"`
	Name                string                 `json:"name"`
	Type                string                 `json:"type"` // "SPAN", "EVENT", "GENERATION"
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
	StartTime           time.Time              `json:"startTime"`
	EndTime             *time.Time             `json:"endTime,omitempty"`
	Level               string                 `json:"level,omitempty"`

	// Generation-specific fields
	Model string         `json:"model,omitempty"`
	Usage *langfuseUsage `json:"usage,omitempty"`
}

type langfuseUsage struct {
	Input  int    `json:"input,omitempty"`
	Output int    `json:"output,omitempty"`
	Total  int    `json:"total,omitempty"`
	Unit   string `json:"unit,omitempty"`
	Model  string `json:"model,omitempty"`
}

// langfuseEvent represents an entry for the batch ingestion API
type langfuseEvent struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"` // "trace-create", "span-create", "span-update", "event-create", "generation-create"
	Timestamp time.Time   `json:"timestamp"`
	Body      interface{} `json:"body"`
}

type langfuseIngestionPayload struct {
	Batch []langfuseEvent `json:"batch"`
}

// NewLangfuseTracer creates a Langfuse tracer from the environment
// (LANGFUSE_PUBLIC_KEY, LANGFUSE_SECRET_KEY, LANGFUSE_HOST). A .env file is
// auto-loaded when present.
func NewLangfuseTracer(log logger.Logger) (Tracer, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Warn("could not load .env file", logger.Error(err))
		}
	}

	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")
	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = "https://cloud.langfuse.com"
	}

	if publicKey == "" || secretKey == "" {
		return nil, errors.New("langfuse credentials missing: LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY are required")
	}

	return newLangfuseTracer(host, publicKey, secretKey, log)
}

func newLangfuseTracer(host, publicKey, secretKey string, log logger.Logger) (*LangfuseTracer, error) {
	tracer := &LangfuseTracer{
		client:     &http.Client{Timeout: 30 * time.Second},
		host:       host,
		publicKey:  publicKey,
		secretKey:  secretKey,
		traces:     make(map[string]*langfuseTrace),
		eventQueue: make(chan *langfuseEvent, 1000),
		stopCh:     make(chan struct{}),
		logger:     log,
	}

	if err := tracer.authCheck(); err != nil {
		return nil, fmt.Errorf("langfuse authentication failed: %w", err)
	}

	tracer.wg.Add(1)
	go tracer.eventProcessor()

	return tracer, nil
}

// authCheck verifies authentication with the Langfuse health endpoint
func (l *LangfuseTracer) authCheck() error {
	req, err := http.NewRequest(http.MethodGet, l.host+"/api/public/health", nil)
	if err != nil {
		return err
	}

	req.SetBasicAuth(l.publicKey, l.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("authentication failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func generateID() string {
	return uuid.NewString()
}

// StartTrace opens a trace and queues its creation event
func (l *LangfuseTracer) StartTrace(id, name, userID, sessionID string, input interface{}) TraceID {
	if id == "" {
		id = generateID()
	}
	trace := &langfuseTrace{
		ID:        id,
		Name:      name,
		Input:     input,
		UserID:    userID,
		SessionID: sessionID,
		Timestamp: time.Now(),
	}

	l.mu.Lock()
	l.traces[id] = trace
	l.mu.Unlock()

	l.queue(&langfuseEvent{
		ID:        generateID(),
		Type:      "trace-create",
		Timestamp: time.Now(),
		Body:      trace,
	})

	return TraceID(id)
}

// EndTrace records the final trace output. Langfuse treats a trace-create
// with an existing id as an update.
func (l *LangfuseTracer) EndTrace(traceID TraceID, output interface{}) {
	l.mu.Lock()
	trace, exists := l.traces[string(traceID)]
	if exists {
		trace.Output = output
	}
	l.mu.Unlock()

	if !exists {
		l.logger.Warn("langfuse: trace not found for end", logger.String("trace_id", string(traceID)))
		return
	}

	l.queue(&langfuseEvent{
		ID:        generateID(),
		Type:      "trace-create",
		Timestamp: time.Now(),
		Body:      trace,
	})
}

// StartSpan opens an observation under the given trace
func (l *LangfuseTracer) StartSpan(traceID TraceID, name string) Span {
	span := &langfuseSpan{
		tracer: l,
		observation: langfuseObservation{
			ID:        generateID(),
			TraceID:   string(traceID),
			Name:      name,
			Type:      "SPAN",
			StartTime: time.Now(),
		},
	}

	body := span.observation
	l.queue(&langfuseEvent{
		ID:        generateID(),
		Type:      "span-create",
		Timestamp: time.Now(),
		Body:      &body,
	})

	return span
}

func (l *LangfuseTracer) queue(event *langfuseEvent) {
	select {
	case l.eventQueue <- event:
	default:
		l.logger.Warn("langfuse: event queue full, dropping event", logger.String("type", event.Type))
	}
}

// langfuseSpan is one open span observation
type langfuseSpan struct {
	tracer      *LangfuseTracer
	observation langfuseObservation
}

// Emit implements events.Sink: each span event becomes an EVENT observation
// parented on this span.
func (s *langfuseSpan) Emit(event events.Event) {
	level := "DEFAULT"
	if event.Level == events.LevelError {
		level = "ERROR"
	}

	s.tracer.queue(&langfuseEvent{
		ID:        generateID(),
		Type:      "event-create",
		Timestamp: time.Now(),
		Body: &langfuseObservation{
			ID:                  generateID(),
			TraceID:             s.observation.TraceID,
			ParentObservationID: s.observation.ID,
			Name:                event.Name,
			Type:                "EVENT",
			Metadata:            event.Metadata,
			StartTime:           event.Timestamp,
			Level:               level,
		},
	})
}

// Generation records a GENERATION observation with usage metrics
func (s *langfuseSpan) Generation(name, model string, usage UsageMetrics) {
	now := time.Now()
	obs := &langfuseObservation{
		ID:                  generateID(),
		TraceID:             s.observation.TraceID,
		ParentObservationID: s.observation.ID,
		Name:                name,
		Type:                "GENERATION",
		StartTime:           now,
		EndTime:             &now,
		Model:               model,
	}
	if usage.InputTokens > 0 || usage.OutputTokens > 0 || usage.TotalTokens > 0 {
		unit := usage.Unit
		if unit == "" {
			unit = "TOKENS"
		}
		obs.Usage = &langfuseUsage{
			Input:  usage.InputTokens,
			Output: usage.OutputTokens,
			Total:  usage.TotalTokens,
			Unit:   unit,
			Model:  model,
		}
	}

	s.tracer.queue(&langfuseEvent{
		ID:        generateID(),
		Type:      "generation-create",
		Timestamp: now,
		Body:      obs,
	})
}

// End closes the span observation
func (s *langfuseSpan) End() {
	now := time.Now()
	body := s.observation
	body.EndTime = &now

	s.tracer.queue(&langfuseEvent{
		ID:        generateID(),
		Type:      "span-update",
		Timestamp: now,
		Body:      &body,
	})
}

// eventProcessor batches queued events and sends them to Langfuse
func (l *LangfuseTracer) eventProcessor() {
	defer l.wg.Done()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var batch []*langfuseEvent

	for {
		select {
		case event := <-l.eventQueue:
			batch = append(batch, event)
			if len(batch) >= 50 {
				l.sendBatch(batch)
				batch = nil
			}

		case <-ticker.C:
			if len(batch) > 0 {
				l.sendBatch(batch)
				batch = nil
			}

		case <-l.stopCh:
			// Drain whatever is still queued, then send the final batch
			for {
				select {
				case event := <-l.eventQueue:
					batch = append(batch, event)
				default:
					if len(batch) > 0 {
						l.sendBatch(batch)
					}
					return
				}
			}
		}
	}
}

// sendBatch sends a batch of events to the Langfuse ingestion API
func (l *LangfuseTracer) sendBatch(pending []*langfuseEvent) {
	if len(pending) == 0 {
		return
	}

	batch := make([]langfuseEvent, len(pending))
	for i, event := range pending {
		batch[i] = *event
	}

	jsonData, err := json.Marshal(langfuseIngestionPayload{Batch: batch})
	if err != nil {
		l.logger.Error("langfuse: failed to marshal batch", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.host+"/api/public/ingestion", bytes.NewBuffer(jsonData))
	if err != nil {
		l.logger.Error("langfuse: failed to create request", err)
		return
	}

	req.SetBasicAuth(l.publicKey, l.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		l.logger.Error("langfuse: failed to send batch", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)

	// 207 is Multi-Status: the batch may contain per-event errors
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusMultiStatus {
		l.logger.Error("langfuse: batch failed", nil,
			logger.Int("status_code", resp.StatusCode),
			logger.String("body", string(body)))
		return
	}

	if resp.StatusCode == http.StatusMultiStatus {
		var batchResult map[string]interface{}
		if err := json.Unmarshal(body, &batchResult); err == nil {
			if errs, ok := batchResult["errors"].([]interface{}); ok && len(errs) > 0 {
				l.logger.Error("langfuse: batch had errors", nil, logger.String("body", string(body)))
				return
			}
		}
	}

	l.logger.Debug("langfuse: sent batch", logger.Int("events_count", len(pending)))
}

// Flush waits for the queue to drain (best effort, bounded at 10s)
func (l *LangfuseTracer) Flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if len(l.eventQueue) == 0 {
				return
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// Shutdown gracefully stops the background processor
func (l *LangfuseTracer) Shutdown() {
	close(l.stopCh)
	l.wg.Wait()
}
