// Package monitor runs the live filtered-stream watch: it installs per-entity
// rules, consumes matched posts, rates their urgency, tracks volume spikes,
// and fans enriched events out to subscribers. The upstream connection is
// reconnected with capped exponential backoff.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gamepop/fin-x-watcher/internal/classifier"
	"github.com/gamepop/fin-x-watcher/pkg/clients"
	"github.com/gamepop/fin-x-watcher/pkg/entities"
	"github.com/gamepop/fin-x-watcher/pkg/logging"
	"github.com/gamepop/fin-x-watcher/pkg/models"
	"github.com/gamepop/fin-x-watcher/pkg/notify"
	"github.com/gamepop/fin-x-watcher/pkg/clients/xapi"
)

const (
	dedupCapacity  = 10000
	bufferCapacity = 500

	spikeWindow    = 5 * time.Minute
	spikeThreshold = 10

	maxReconnectAttempts = 10
	subscriberBuffer     = 64
)

// ErrAlreadyRunning is returned by Start when the monitor is active.
var ErrAlreadyRunning = errors.New("monitor already running")

// ErrNotRunning is returned by Stop when the monitor is idle.
var ErrNotRunning = errors.New("monitor not running")

// StreamConn is one open filtered-stream connection.
type StreamConn interface {
	Next() (xapi.StreamedPost, error)
	Close() error
}

// StreamSource opens stream connections and manages the installed rules.
type StreamSource interface {
	ReplaceStreamRules(ctx context.Context, rules []entities.StreamRule) error
	OpenStream(ctx context.Context) (StreamConn, error)
}

// Config configures the monitor's collaborators. Classifier and Notifier are
// optional; without them high-urgency posts still produce alert events but no
// deliveries.
type Config struct {
	Source     StreamSource
	Classifier classifier.Classifier
	Notifier   notify.Notifier
	Logger     logging.Logger
	Retry      clients.RetryConfig
}

// Status is the monitor's control-surface snapshot.
type Status struct {
	Running           bool      `json:"running"`
	Entities          []string  `json:"entities"`
	EventsSeen        int64     `json:"events_seen"`
	BufferedPosts     int       `json:"buffered_posts"`
	DedupedIDs        int       `json:"deduped_ids"`
	ReconnectAttempts int       `json:"reconnect_attempts"`
	LastEventAt       time.Time `json:"last_event_at,omitempty"`
}

// Monitor is the live stream watcher.
type Monitor struct {
	cfg     Config
	tracker *SpikeTracker
	dedup   *dedupSet

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	byTag      map[string]entities.Entity
	buffer     []models.Post
	eventsSeen int64
	reconnects int
	lastEvent  time.Time

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan models.StreamEvent
}

// New creates a monitor.
func New(cfg Config) *Monitor {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = clients.DefaultRetryConfig()
	}
	return &Monitor{
		cfg:     cfg,
		tracker: NewSpikeTracker(spikeWindow, spikeThreshold),
		dedup:   newDedupSet(dedupCapacity),
		byTag:   map[string]entities.Entity{},
		subs:    map[int]chan models.StreamEvent{},
	}
}

// Start installs rules for the given institutions and begins consuming the
// stream. It returns once the stream loop is launched.
func (m *Monitor) Start(ctx context.Context, names []string) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	for _, name := range names {
		e := entities.NewEntity(name)
		m.byTag[entities.RuleTag(e.Name)] = e
	}
	rules := m.rulesLocked()
	m.mu.Unlock()

	if len(rules) == 0 {
		return errors.New("no entities to monitor")
	}

	if err := m.cfg.Source.ReplaceStreamRules(ctx, rules); err != nil {
		return fmt.Errorf("install stream rules: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.mu.Lock()
	if m.cancel != nil {
		// Release the context of a loop that terminated on its own.
		m.cancel()
	}
	m.running = true
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go m.run(runCtx, done)

	if m.cfg.Logger != nil {
		m.cfg.Logger.WithField("entities", len(rules)).Info("Live monitoring started")
	}
	return nil
}

// Stop halts the stream loop and waits for it to exit. A loop that already
// terminated on its own (auth failure, exhausted reconnect budget) is cleaned
// up without error.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if done == nil {
		return ErrNotRunning
	}

	cancel()
	<-done

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	if m.cfg.Logger != nil {
		m.cfg.Logger.Info("Live monitoring stopped")
	}
	return nil
}

// AddEntity registers another institution. When the monitor is running the
// installed rule set is replaced to include it.
func (m *Monitor) AddEntity(ctx context.Context, name string) (entities.Entity, error) {
	e := entities.NewEntity(name)

	m.mu.Lock()
	m.byTag[entities.RuleTag(e.Name)] = e
	rules := m.rulesLocked()
	running := m.running
	m.mu.Unlock()

	if running {
		if err := m.cfg.Source.ReplaceStreamRules(ctx, rules); err != nil {
			return e, fmt.Errorf("update stream rules: %w", err)
		}
	}
	return e, nil
}

// Status reports the monitor's current state.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.byTag))
	for _, e := range m.byTag {
		names = append(names, e.Name)
	}
	return Status{
		Running:           m.running,
		Entities:          names,
		EventsSeen:        m.eventsSeen,
		BufferedPosts:     len(m.buffer),
		DedupedIDs:        m.dedup.Len(),
		ReconnectAttempts: m.reconnects,
		LastEventAt:       m.lastEvent,
	}
}

// AnalyzeBuffer classifies the currently buffered posts as one batch and
// clears the buffer. With no classifier configured or an empty buffer it
// returns an empty verdict.
func (m *Monitor) AnalyzeBuffer(ctx context.Context) (models.RiskVerdict, error) {
	m.mu.Lock()
	posts := m.buffer
	m.buffer = nil
	m.mu.Unlock()

	if len(posts) == 0 {
		return models.RiskVerdict{RiskLevel: models.RiskLow, Summary: "No buffered posts to analyze."}, nil
	}
	if m.cfg.Classifier == nil {
		return models.RiskVerdict{}, errors.New("no classifier configured")
	}
	return m.cfg.Classifier.Classify(ctx, "monitored institutions", posts)
}

// Subscribe returns a channel of stream events and a cancel function. Slow
// subscribers drop events instead of blocking the stream loop.
func (m *Monitor) Subscribe() (<-chan models.StreamEvent, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan models.StreamEvent, subscriberBuffer)
	m.subs[id] = ch

	return ch, func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if existing, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(existing)
		}
	}
}

// rulesLocked must be called with m.mu held.
func (m *Monitor) rulesLocked() []entities.StreamRule {
	rules := make([]entities.StreamRule, 0, len(m.byTag))
	for _, e := range m.byTag {
		rules = append(rules, entities.BuildStreamRule(e))
	}
	return rules
}

// run is the reconnecting consume loop. Auth failures and exhausted reconnect
// budgets emit a terminal error event and end the loop. Only a successful read
// resets the attempt counter: a connection that is accepted but dies before
// delivering a post still counts against the reconnect budget, so a
// connect-then-drop upstream cannot spin the loop forever.
func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := m.cfg.Source.OpenStream(ctx)
		if err == nil {
			read, readErr := m.consume(ctx, conn)
			_ = conn.Close()
			if ctx.Err() != nil {
				return
			}
			if read {
				attempt = 0
			}
			err = readErr
		}

		var authErr *clients.AuthError
		if errors.As(err, &authErr) {
			m.emit(models.StreamEvent{
				Type:      models.EventError,
				Timestamp: time.Now().UTC(),
				Message:   "stream authentication failed: " + err.Error(),
			})
			return
		}

		attempt++
		if attempt > maxReconnectAttempts {
			m.emit(models.StreamEvent{
				Type:      models.EventError,
				Timestamp: time.Now().UTC(),
				Attempt:   attempt,
				Message:   "reconnect budget exhausted: " + err.Error(),
			})
			return
		}

		m.mu.Lock()
		m.reconnects = attempt
		m.mu.Unlock()

		m.emit(models.StreamEvent{
			Type:      models.EventReconnecting,
			Timestamp: time.Now().UTC(),
			Attempt:   attempt,
			Message:   err.Error(),
		})

		select {
		case <-ctx.Done():
			return
		case <-time.After(clients.Delay(attempt-1, m.cfg.Retry.BaseDelay, m.cfg.Retry.MaxDelay, m.cfg.Retry.JitterFraction)):
		}
	}
}

// consume reads posts until the connection breaks or the context ends. It
// reports whether at least one post was read and the error that ended the
// connection.
func (m *Monitor) consume(ctx context.Context, conn StreamConn) (bool, error) {
	read := false
	for {
		if ctx.Err() != nil {
			return read, ctx.Err()
		}
		sp, err := conn.Next()
		if err != nil {
			if ctx.Err() == nil && m.cfg.Logger != nil {
				m.cfg.Logger.WithField("error", err.Error()).Warn("Stream connection lost")
			}
			return read, err
		}
		read = true
		m.handle(ctx, sp)
	}
}

func (m *Monitor) handle(ctx context.Context, sp xapi.StreamedPost) {
	if m.dedup.Seen(sp.Post.ID) {
		return
	}

	entity, keywords := m.resolve(sp.Tags)
	matched := MatchKeywords(sp.Post.Text, keywords)
	score := UrgencyScore(sp.Post, len(matched))
	urgency := UrgencyClass(score, len(matched))
	now := time.Now().UTC()

	m.mu.Lock()
	m.eventsSeen++
	m.lastEvent = now
	m.buffer = append(m.buffer, sp.Post)
	if len(m.buffer) > bufferCapacity {
		half := len(m.buffer) / 2
		m.buffer = append(m.buffer[:0], m.buffer[half:]...)
	}
	m.mu.Unlock()

	post := sp.Post
	m.emit(models.StreamEvent{
		Type:            models.EventTweet,
		Timestamp:       now,
		Entity:          entity,
		Post:            &post,
		MatchedKeywords: matched,
		Urgency:         urgency,
		UrgencyScore:    score,
	})

	if count, spiking := m.tracker.Record(entity); spiking && count == spikeThreshold+1 {
		m.emit(models.StreamEvent{
			Type:        models.EventVolumeSpike,
			Timestamp:   now,
			Entity:      entity,
			WindowCount: count,
		})
	}

	if urgency == models.UrgencyHigh || post.TotalEngagement() > highEngagementAlert {
		m.emit(models.StreamEvent{
			Type:            models.EventAlert,
			Timestamp:       now,
			Entity:          entity,
			Post:            &post,
			MatchedKeywords: matched,
			Urgency:         urgency,
			UrgencyScore:    score,
		})
		go m.escalate(ctx, entity, post)
	}
}

// escalate classifies a single high-urgency post and delivers the verdict if
// it comes back elevated.
func (m *Monitor) escalate(ctx context.Context, entity string, post models.Post) {
	if m.cfg.Classifier == nil {
		return
	}
	verdict, err := m.cfg.Classifier.Classify(ctx, entity, []models.Post{post})
	if err != nil {
		return
	}
	if verdict.RiskLevel != models.RiskHigh && verdict.RiskLevel != models.RiskMedium {
		return
	}
	if m.cfg.Notifier == nil {
		return
	}
	result := m.cfg.Notifier.Notify(ctx, entity, verdict.RiskLevel, verdict.Summary, post.URL)
	if result.Status == models.DeliveryError && m.cfg.Logger != nil {
		m.cfg.Logger.WithFields(logging.Fields{
			"entity": entity,
			"error":  result.Error,
		}).Error("Escalation delivery failed")
	}
}

// resolve maps matched rule tags to a registered entity and its keywords.
// Unrecognized tags fall back to the first tag and the general keyword set.
func (m *Monitor) resolve(tags []string) (string, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tag := range tags {
		if e, ok := m.byTag[tag]; ok {
			return e.Name, e.Keywords
		}
	}
	if len(tags) > 0 {
		return tags[0], entities.RiskKeywords(entities.TypeUnknown)
	}
	return "unknown", entities.RiskKeywords(entities.TypeUnknown)
}

func (m *Monitor) emit(ev models.StreamEvent) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
