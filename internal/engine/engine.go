package engine

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salespulse/realtime/internal/models"
	"github.com/sirupsen/logrus"
)

// SubscriptionSpec describes a standing interest registration. An empty
// OrganizationID defaults to the engine's configured organization.
type SubscriptionSpec struct {
	EventTypes     []models.EventType
	EntityFilters  map[string]any
	OrganizationID string
	Callback       func(*models.SyncEvent)
}

// Engine is the real-time synchronization engine: it multiplexes many
// logical subscriptions over one websocket connection, recovers from
// disconnection with bounded exponential backoff, and queues locally
// published events while offline.
//
// An Engine is safe for concurrent use. Construct one per endpoint with New;
// the application typically holds a single shared instance.
type Engine struct {
	cfg       Config
	log       *logrus.Logger
	transport Transport
	heartbeat *heartbeatMonitor
	queue     *outboundQueue

	mu         sync.Mutex
	state      connState
	closing    bool
	status     models.ConnectionStatus
	metrics    models.SyncMetrics
	subs       map[uuid.UUID]*models.Subscription
	retryTimer *time.Timer

	observers observers
}

// observers holds the typed notification hooks, one slice per kind.
type observers struct {
	connected     []func()
	disconnected  []func(reason string)
	errs          []func(error)
	eventReceived []func(*models.SyncEvent)
	syncComplete  []func(sent int)
	maxReconnects []func()
}

// New creates an engine from cfg. Nothing is dialed until Connect.
func New(cfg Config) *Engine {
	cfg.withDefaults()

	e := &Engine{
		cfg:       cfg,
		log:       cfg.Logger,
		transport: cfg.Transport,
		heartbeat: newHeartbeatMonitor(),
		queue:     newOutboundQueue(),
		state:     stateDisconnected,
		subs:      make(map[uuid.UUID]*models.Subscription),
	}
	if e.transport == nil {
		e.transport = NewWebsocketTransport(e.log)
	}
	e.transport.SetHandler(e)
	return e
}

// Connect dials the endpoint and returns once the dial resolves. A dial or
// authentication failure is returned to the caller and is not retried; the
// reconnection controller only engages after a connection that was once open
// closes unexpectedly.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	if e.state == stateConnected {
		e.mu.Unlock()
		e.log.Warn("connect called while already connected")
		return ErrAlreadyConnected
	}
	e.state = stateConnecting
	e.closing = false
	e.mu.Unlock()

	endpoint, err := e.dialURL()
	if err != nil {
		e.mu.Lock()
		e.state = stateDisconnected
		e.status.LastError = err.Error()
		e.mu.Unlock()
		return fmt.Errorf("invalid endpoint: %w", err)
	}

	if err := e.transport.Open(ctx, endpoint); err != nil {
		e.mu.Lock()
		e.state = stateDisconnected
		e.status.LastError = err.Error()
		e.metrics.Errors++
		e.mu.Unlock()
		return fmt.Errorf("connect: %w", err)
	}

	e.onOpened()
	return nil
}

// Disconnect tears down local state synchronously and closes the transport
// with a deliberate close code. No reconnection is scheduled afterwards.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	e.closing = true
	e.state = stateDisconnected
	e.status.Connected = false
	e.metrics.ConnectedAt = time.Time{}
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
	e.mu.Unlock()

	e.heartbeat.Stop()
	if err := e.transport.Close(DeliberateClose, "client disconnect"); err != nil {
		e.log.WithError(err).Debug("transport close failed")
	}
}

// Subscribe registers a standing interest and returns its id. Registration
// always succeeds locally; when connected, a subscribe control message is
// transmitted immediately, otherwise it is replayed on the next successful
// connection.
func (e *Engine) Subscribe(spec SubscriptionSpec) (uuid.UUID, error) {
	if len(spec.EventTypes) == 0 {
		return uuid.Nil, ErrNoEventTypes
	}

	org := spec.OrganizationID
	if org == "" {
		org = e.cfg.OrganizationID
	}
	sub := &models.Subscription{
		ID:             uuid.New(),
		EventTypes:     spec.EventTypes,
		EntityFilters:  spec.EntityFilters,
		OrganizationID: org,
		Callback:       spec.Callback,
	}

	e.mu.Lock()
	e.subs[sub.ID] = sub
	connected := e.state == stateConnected
	e.mu.Unlock()

	if connected {
		e.send(subscribeMessage(sub))
	}
	return sub.ID, nil
}

// Unsubscribe removes the subscription locally and, when connected, tells
// the server to stop forwarding. Unknown ids are a silent no-op.
func (e *Engine) Unsubscribe(id uuid.UUID) {
	e.mu.Lock()
	_, known := e.subs[id]
	delete(e.subs, id)
	connected := e.state == stateConnected
	e.mu.Unlock()

	if known && connected {
		e.send(&models.Message{Type: models.MessageUnsubscribe, SubscriptionID: id.String()})
	}
}

// PublishEvent stamps the draft into a SyncEvent and transmits it, or queues
// it FIFO when disconnected. Queued events are drained in publish order by
// ForceSynchronization.
func (e *Engine) PublishEvent(draft models.EventDraft) error {
	if draft.UserID == "" {
		draft.UserID = e.cfg.UserID
	}
	if draft.OrganizationID == "" {
		draft.OrganizationID = e.cfg.OrganizationID
	}
	ev := models.NewSyncEvent(draft)

	e.mu.Lock()
	connected := e.state == stateConnected
	e.mu.Unlock()

	if !connected {
		e.queue.Enqueue(ev)
		e.log.WithFields(logrus.Fields{
			"eventId": ev.ID,
			"queued":  e.queue.Len(),
		}).Debug("offline, event queued")
		return nil
	}
	return e.send(&models.Message{Type: models.MessagePublish, Event: ev})
}

// ForceSynchronization drains the outbound queue in publish order. It runs
// automatically after every successful connection. The queue is cleared
// before the sends are attempted: a send failure is surfaced as an engine
// error and the affected events are not re-queued.
func (e *Engine) ForceSynchronization() {
	e.mu.Lock()
	connected := e.state == stateConnected
	e.mu.Unlock()
	if !connected {
		return
	}

	drained := e.queue.DrainAll()
	sent := 0
	for _, ev := range drained {
		if err := e.send(&models.Message{Type: models.MessagePublish, Event: ev}); err != nil {
			e.log.WithError(err).WithField("eventId", ev.ID).Error("drain send failed, event lost")
			continue
		}
		sent++
	}

	if len(drained) > 0 {
		e.log.WithFields(logrus.Fields{"drained": len(drained), "sent": sent}).Info("outbound queue drained")
	}
	e.emitSyncComplete(sent)
}

// ConnectionStatus returns a snapshot of the current transport state.
func (e *Engine) ConnectionStatus() models.ConnectionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Metrics returns a snapshot of the cumulative engine counters.
func (e *Engine) Metrics() models.SyncMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics
}

// QueuedEvents returns the number of events awaiting transmission.
func (e *Engine) QueuedEvents() int {
	return e.queue.Len()
}

// Notification hooks. Handlers are invoked from engine goroutines and must
// not block.

func (e *Engine) OnConnected(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers.connected = append(e.observers.connected, fn)
}

func (e *Engine) OnDisconnected(fn func(reason string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers.disconnected = append(e.observers.disconnected, fn)
}

func (e *Engine) OnError(fn func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers.errs = append(e.observers.errs, fn)
}

func (e *Engine) OnEventReceived(fn func(*models.SyncEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers.eventReceived = append(e.observers.eventReceived, fn)
}

func (e *Engine) OnSynchronizationComplete(fn func(sent int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers.syncComplete = append(e.observers.syncComplete, fn)
}

func (e *Engine) OnMaxReconnectsReached(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers.maxReconnects = append(e.observers.maxReconnects, fn)
}

// onOpened transitions to connected, replays subscriptions and drains the
// outbound queue. Runs after the initial dial and after every reconnect.
func (e *Engine) onOpened() {
	e.mu.Lock()
	e.state = stateConnected
	e.status.Connected = true
	e.status.ReconnectAttempts = 0
	e.status.LastError = ""
	e.metrics.ConnectedAt = time.Now()
	e.mu.Unlock()

	e.log.Info("connected")
	e.heartbeat.Start(e.cfg.HeartbeatInterval, e.sendHeartbeatProbe)
	e.resubscribeAll()
	e.ForceSynchronization()
	e.emitConnected()
}

// resubscribeAll retransmits every registered subscription as a fresh
// subscribe message. Iteration order is map order and not guaranteed.
func (e *Engine) resubscribeAll() {
	e.mu.Lock()
	snapshot := make([]*models.Subscription, 0, len(e.subs))
	for _, s := range e.subs {
		snapshot = append(snapshot, s)
	}
	e.mu.Unlock()

	for _, s := range snapshot {
		e.send(subscribeMessage(s))
	}
}

// scheduleReconnect arms the retry timer for the next attempt, or gives up
// once the attempt limit is reached.
func (e *Engine) scheduleReconnect() {
	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		return
	}
	attempt := e.status.ReconnectAttempts
	if attempt >= e.cfg.MaxReconnectAttempts {
		e.state = stateGivingUp
		e.mu.Unlock()
		e.log.WithField("attempts", attempt).Error("max reconnect attempts reached, giving up")
		e.emitMaxReconnects()
		return
	}

	delay := backoffDelay(attempt, e.cfg.ReconnectBaseDelay, e.cfg.ReconnectMaxDelay)
	e.status.ReconnectAttempts = attempt + 1
	e.state = stateConnecting
	if e.retryTimer != nil {
		e.retryTimer.Stop()
	}
	e.retryTimer = time.AfterFunc(delay, e.attemptReconnect)
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{"attempt": attempt, "delay": delay}).Info("reconnect scheduled")
}

func (e *Engine) attemptReconnect() {
	e.mu.Lock()
	if e.closing || e.state != stateConnecting {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	endpoint, err := e.dialURL()
	if err == nil {
		err = e.transport.Open(context.Background(), endpoint)
	}
	if err != nil {
		e.mu.Lock()
		e.metrics.Errors++
		e.status.LastError = err.Error()
		e.mu.Unlock()
		e.log.WithError(err).Warn("reconnect attempt failed")
		e.emitError(err)
		e.scheduleReconnect()
		return
	}

	e.onOpened()
}

// HandleClosed implements TransportHandler. A deliberate close (code 1000 or
// a local Disconnect) is terminal; any other closure engages the
// reconnection controller.
func (e *Engine) HandleClosed(code int, reason string) {
	e.heartbeat.Stop()

	e.mu.Lock()
	e.status.Connected = false
	e.metrics.ConnectedAt = time.Time{}
	deliberate := e.closing || code == DeliberateClose
	if deliberate {
		e.state = stateDisconnected
	}
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{"code": code, "reason": reason}).Info("connection closed")
	e.emitDisconnected(reason)

	if !deliberate {
		e.scheduleReconnect()
	}
}

// HandleError implements TransportHandler.
func (e *Engine) HandleError(err error) {
	e.mu.Lock()
	e.metrics.Errors++
	e.status.LastError = err.Error()
	e.mu.Unlock()

	e.log.WithError(err).Warn("transport error")
	e.emitError(err)
}

// send transmits one wire message and keeps the sent/error counters honest.
func (e *Engine) send(msg *models.Message) error {
	if err := e.transport.Send(msg); err != nil {
		e.mu.Lock()
		e.metrics.Errors++
		e.status.LastError = err.Error()
		e.mu.Unlock()
		e.emitError(err)
		return err
	}

	e.mu.Lock()
	e.metrics.MessagesSent++
	e.mu.Unlock()
	return nil
}

func (e *Engine) sendHeartbeatProbe() {
	e.mu.Lock()
	connected := e.state == stateConnected
	e.mu.Unlock()
	if !connected {
		return
	}
	e.send(&models.Message{Type: models.MessageHeartbeat, Timestamp: time.Now().UnixMilli()})
}

// dialURL rewrites the configured endpoint to the websocket scheme and
// appends the identifying query parameters.
func (e *Engine) dialURL() (string, error) {
	u, err := url.Parse(e.cfg.URL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	q := u.Query()
	q.Set("userId", e.cfg.UserID)
	q.Set("organizationId", e.cfg.OrganizationID)
	q.Set("token", e.cfg.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func subscribeMessage(s *models.Subscription) *models.Message {
	return &models.Message{
		Type:           models.MessageSubscribe,
		SubscriptionID: s.ID.String(),
		EventTypes:     s.EventTypes,
		EntityFilters:  s.EntityFilters,
		OrganizationID: s.OrganizationID,
	}
}

// emit helpers snapshot the observer list under the lock, then invoke
// without it so handlers can call back into the engine.

func (e *Engine) emitConnected() {
	e.mu.Lock()
	fns := append([]func(){}, e.observers.connected...)
	e.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (e *Engine) emitDisconnected(reason string) {
	e.mu.Lock()
	fns := append([]func(string){}, e.observers.disconnected...)
	e.mu.Unlock()
	for _, fn := range fns {
		fn(reason)
	}
}

func (e *Engine) emitError(err error) {
	e.mu.Lock()
	fns := append([]func(error){}, e.observers.errs...)
	e.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (e *Engine) emitEventReceived(ev *models.SyncEvent) {
	e.mu.Lock()
	fns := append([]func(*models.SyncEvent){}, e.observers.eventReceived...)
	e.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (e *Engine) emitSyncComplete(sent int) {
	e.mu.Lock()
	fns := append([]func(int){}, e.observers.syncComplete...)
	e.mu.Unlock()
	for _, fn := range fns {
		fn(sent)
	}
}

func (e *Engine) emitMaxReconnects() {
	e.mu.Lock()
	fns := append([]func(){}, e.observers.maxReconnects...)
	e.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
