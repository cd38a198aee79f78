package mosaic

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/mosaicctl/internal/observability"
	"github.com/danmuck/mosaicctl/internal/protocol"
)

var (
	ErrDuplicateTile = errors.New("mosaic: duplicate tile")
	ErrUnknownTile   = errors.New("mosaic: unknown tile")
	ErrTileNotFound  = errors.New("mosaic: tile not found")
	ErrAlreadyActive = errors.New("mosaic: tile already active")
	ErrNoQueueEntry  = errors.New("mosaic: no queue entry")
	ErrQueueEmpty    = errors.New("mosaic: queue empty")
	ErrNotListening  = errors.New("mosaic: manager is not listening")
)

// LifecyclePhase tracks where the Manager sits between construction and
// its terminal kill.
type LifecyclePhase string

const (
	PhaseIdle      LifecyclePhase = "idle"
	PhaseListening LifecyclePhase = "listening"
	PhaseStopped   LifecyclePhase = "stopped"
	PhaseKilled    LifecyclePhase = "killed"
)

// Action is one queued unit of work for a tile.
type Action struct {
	Kind   string `json:"kind"`
	Values []any  `json:"values"`
}

// CallbackRecord is one completion report received from a tile.
type CallbackRecord struct {
	Tile       string    `json:"tile"`
	Action     string    `json:"action"`
	Status     int       `json:"status"`
	Error      string    `json:"error,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// tileActivation tracks one registered worker.
type tileActivation struct {
	registeredAt time.Time
}

// Launch handle states.
const (
	LaunchStatePending = "pending"
	LaunchStateRunning = "running"
	LaunchStateFailed  = "failed"
	LaunchStateExited  = "exited"
)

// processRecord is one launch handle. Handles are recorded for
// inspection and never reaped by Stop or Kill.
type processRecord struct {
	launchID  string
	tile      Tile
	startedAt time.Time
	state     string
	exitCode  int
	err       error
}

// The live Manager occupies this slot until Kill releases it; the
// constructors hand the same instance to every caller in between.
var (
	currentMu sync.Mutex
	current   *Manager
)

// ManagerConfig carries the listener endpoint and launch plumbing.
type ManagerConfig struct {
	ID              string
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	ReportLimit     int
	Launcher        Launcher
}

// DefaultManagerConfig binds an ephemeral loopback port with the exec
// launcher.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ID:              "mosaic",
		Host:            "127.0.0.1",
		Port:            0,
		ShutdownTimeout: 5 * time.Second,
		ReportLimit:     64,
		Launcher:        &execLauncher{},
	}
}

// Manager is the control plane: it owns the known and active tile sets,
// the per-tile action queues, launch handles, and the wire listener. All
// state mutation is serialized under one mutex.
type Manager struct {
	mu sync.RWMutex

	cfg   ManagerConfig
	phase LifecyclePhase
	port  int

	tiles   map[string]Tile
	active  map[string]tileActivation
	queues  map[string][]Action
	procs   map[string]*processRecord
	reports []CallbackRecord

	engine *gin.Engine
	server *http.Server
}

// NewManager returns the live Manager, building and installing a fresh
// one only when no live instance exists.
func NewManager() *Manager {
	return NewManagerWithConfig(DefaultManagerConfig())
}

// NewManagerWithConfig behaves like NewManager; the config only takes
// effect when a fresh instance is built.
func NewManagerWithConfig(cfg ManagerConfig) *Manager {
	currentMu.Lock()
	defer currentMu.Unlock()
	if current != nil {
		return current
	}
	m := &Manager{
		cfg:    normalizeManagerConfig(cfg),
		phase:  PhaseIdle,
		tiles:  make(map[string]Tile),
		active: make(map[string]tileActivation),
		queues: make(map[string][]Action),
		procs:  make(map[string]*processRecord),
	}
	m.engine = m.buildEngine()
	current = m
	return m
}

func normalizeManagerConfig(cfg ManagerConfig) ManagerConfig {
	def := DefaultManagerConfig()
	if strings.TrimSpace(cfg.ID) == "" {
		cfg.ID = def.ID
	}
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = def.Host
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		cfg.Port = def.Port
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.ReportLimit <= 0 {
		cfg.ReportLimit = def.ReportLimit
	}
	if cfg.Launcher == nil {
		cfg.Launcher = def.Launcher
	}
	return cfg
}

// Run binds the loopback listener and starts serving wire requests,
// returning the bound port. A killed Manager ignores the call and
// reports its retained port. Running while already listening rebinds a
// fresh listener on the same port.
func (m *Manager) Run() (int, error) {
	m.mu.Lock()
	if m.phase == PhaseKilled {
		port := m.port
		m.mu.Unlock()
		log.Warn().Str("manager", m.cfg.ID).Msg("run_ignored_killed")
		return port, nil
	}
	if m.phase == PhaseListening {
		m.mu.Unlock()
		if err := m.Stop(); err != nil {
			return 0, err
		}
		m.mu.Lock()
	}
	host := m.cfg.Host
	requested := m.cfg.Port
	if m.port != 0 {
		requested = m.port
	}
	m.mu.Unlock()

	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(requested)))
	if err != nil {
		return 0, fmt.Errorf("mosaic: bind %s:%d: %w", host, requested, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	srv := &http.Server{Handler: m.engine}

	m.mu.Lock()
	m.server = srv
	m.port = port
	m.phase = PhaseListening
	m.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Int("port", port).Msg("listener_serve_failed")
		}
	}()

	log.Info().Str("manager", m.cfg.ID).Str("host", host).Int("port", port).Msg("manager_listening")
	return port, nil
}

// Stop shuts the listener down gracefully. The bound port is retained so
// a later Run rebinds it. Safe to call repeatedly and after Kill.
func (m *Manager) Stop() error {
	m.mu.Lock()
	srv := m.server
	m.server = nil
	if m.phase == PhaseListening {
		m.phase = PhaseStopped
	}
	timeout := m.cfg.ShutdownTimeout
	port := m.port
	m.mu.Unlock()

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("mosaic: listener shutdown: %w", err)
	}
	log.Info().Str("manager", m.cfg.ID).Int("port", port).Msg("manager_stopped")
	return nil
}

// Kill stops the listener and retires the Manager permanently; the next
// constructor call builds a fresh instance. Launch handles stay readable
// on the dead instance.
func (m *Manager) Kill() error {
	err := m.Stop()

	m.mu.Lock()
	already := m.phase == PhaseKilled
	m.phase = PhaseKilled
	m.mu.Unlock()

	currentMu.Lock()
	if current == m {
		current = nil
	}
	currentMu.Unlock()

	if !already {
		log.Info().Str("manager", m.cfg.ID).Msg("manager_killed")
	}
	return err
}

// AddTile makes a tile known to the control plane.
func (m *Manager) AddTile(t Tile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseKilled {
		return nil
	}
	if t.Zero() {
		return ErrInvalidTile
	}
	if _, ok := m.tiles[t.Name()]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTile, t.Name())
	}
	m.tiles[t.Name()] = t
	observability.SetTilesKnown(len(m.tiles))
	log.Info().Str("tile", t.Name()).Str("path", t.Path()).Msg("tile_added")
	return nil
}

// RemoveTile forgets a tile along with its queue entry and activation.
// Unknown tiles are ignored. A running process is left alone; its next
// poll meets unknown-tile handling.
func (m *Manager) RemoveTile(t Tile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseKilled {
		return
	}
	name := t.Name()
	if _, ok := m.tiles[name]; !ok {
		return
	}
	delete(m.tiles, name)
	delete(m.queues, name)
	delete(m.active, name)
	observability.SetTilesKnown(len(m.tiles))
	observability.SetTilesActive(len(m.active))
	observability.DropQueueDepth(name)
	log.Info().Str("tile", name).Msg("tile_removed")
}

// RunTile launches a tile process pointed at the listening port. The
// launch itself is asynchronous: start failures land on the process
// record, not the return value. A second launch for the same name
// replaces the tracked handle without touching the earlier process.
func (m *Manager) RunTile(t Tile) error {
	m.mu.Lock()
	if m.phase == PhaseKilled {
		m.mu.Unlock()
		return nil
	}
	if t.Zero() {
		m.mu.Unlock()
		return ErrInvalidTile
	}
	if m.port == 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: run the manager before launching tiles", ErrNotListening)
	}
	port := m.port
	launcher := m.cfg.Launcher
	if prev, ok := m.procs[t.Name()]; ok {
		log.Warn().Str("tile", t.Name()).Str("prev_launch_id", prev.launchID).Msg("tile_relaunched")
	}
	rec := &processRecord{tile: t, startedAt: time.Now(), state: LaunchStatePending}
	m.procs[t.Name()] = rec
	m.mu.Unlock()

	go m.launchTile(launcher, t, port, rec)
	return nil
}

// launchTile runs one launch from start through process exit.
func (m *Manager) launchTile(launcher Launcher, t Tile, port int, rec *processRecord) {
	proc, err := launcher.Launch(t, port)
	if err != nil {
		m.mu.Lock()
		rec.state = LaunchStateFailed
		rec.err = err
		m.mu.Unlock()
		observability.RecordLaunch(t.Name(), "failed")
		log.Error().Str("tile", t.Name()).Err(err).Msg("tile_launch_failed")
		return
	}

	m.mu.Lock()
	rec.launchID = proc.LaunchID()
	rec.state = LaunchStateRunning
	m.mu.Unlock()
	observability.RecordLaunch(t.Name(), "started")
	log.Info().Str("tile", t.Name()).Str("launch_id", proc.LaunchID()).Int("port", port).Msg("tile_launched")

	code := proc.Wait()

	m.mu.Lock()
	rec.state = LaunchStateExited
	rec.exitCode = code
	m.mu.Unlock()
	m.unregisterTile(t.Name())
	observability.RecordLaunch(t.Name(), "exited")
	log.Info().Str("tile", t.Name()).Int("exit_code", code).Msg("tile_exited")
}

// RequestAction appends one action to a known tile's queue. The queue
// entry is created on first use and survives draining, which keeps
// drained tiles distinct from never-enqueued ones.
func (m *Manager) RequestAction(name, kind string, values []any) error {
	name = strings.TrimSpace(name)
	kind = strings.TrimSpace(kind)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseKilled {
		return nil
	}
	if _, ok := m.tiles[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTile, name)
	}
	m.queues[name] = append(m.queues[name], Action{Kind: kind, Values: copyValues(values)})
	observability.SetQueueDepth(name, len(m.queues[name]))
	observability.RecordActionEnqueued(name, kind)
	log.Debug().Str("tile", name).Str("kind", kind).Int("depth", len(m.queues[name])).Msg("action_enqueued")
	return nil
}

// CheckQueue returns the queue head without consuming it, empty when the
// tile has nothing pending.
func (m *Manager) CheckQueue(name string) map[string][]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	head := map[string][]any{}
	queue, ok := m.queues[strings.TrimSpace(name)]
	if !ok || len(queue) == 0 {
		return head
	}
	head[queue[0].Kind] = copyValues(queue[0].Values)
	return head
}

// PopQueue removes the queue head after a worker confirms execution.
func (m *Manager) PopQueue(name string) error {
	name = strings.TrimSpace(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseKilled {
		return nil
	}
	queue, ok := m.queues[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoQueueEntry, name)
	}
	if len(queue) == 0 {
		return fmt.Errorf("%w: %q", ErrQueueEmpty, name)
	}
	kind := queue[0].Kind
	m.queues[name] = queue[1:]
	observability.SetQueueDepth(name, len(m.queues[name]))
	log.Debug().Str("tile", name).Str("kind", kind).Msg("queue_popped")
	return nil
}

// registerTile flips a known tile to active. Unknown tiles and duplicate
// registrations are rejected loudly; the listener turns both into failed
// responses.
func (m *Manager) registerTile(name string) error {
	name = strings.TrimSpace(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseKilled {
		return nil
	}
	if _, ok := m.tiles[name]; !ok {
		return fmt.Errorf("%w: %q", ErrTileNotFound, name)
	}
	if _, ok := m.active[name]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyActive, name)
	}
	m.active[name] = tileActivation{registeredAt: time.Now()}
	observability.SetTilesActive(len(m.active))
	log.Info().Str("tile", name).Msg("tile_registered")
	return nil
}

// unregisterTile drops a tile from the active set; unknown and inactive
// names are ignored.
func (m *Manager) unregisterTile(name string) {
	name = strings.TrimSpace(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseKilled {
		return
	}
	if _, ok := m.active[name]; !ok {
		return
	}
	delete(m.active, name)
	observability.SetTilesActive(len(m.active))
	log.Info().Str("tile", name).Msg("tile_unregistered")
}

// handleCallback records the report and applies the pop discipline. The
// returned value is the wire queue_pop payload: true when the head was
// removed, false when the entry was already empty, an error string when
// the tile has no queue entry.
func (m *Manager) handleCallback(cb protocol.Callback) any {
	m.recordCallback(cb)
	if cb.Status != 0 {
		log.Warn().Str("tile", cb.Name).Str("action", cb.Action).Str("error", cb.Error).Msg("action_failed")
	}
	err := m.PopQueue(cb.Name)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrQueueEmpty):
		return false
	default:
		return err.Error()
	}
}

// recordCallback appends a completion report, keeping the newest
// ReportLimit entries.
func (m *Manager) recordCallback(cb protocol.Callback) {
	rec := CallbackRecord{
		Tile:       cb.Name,
		Action:     cb.Action,
		Status:     cb.Status,
		Error:      cb.Error,
		ReceivedAt: time.Now(),
	}
	m.mu.Lock()
	m.reports = append(m.reports, rec)
	if over := len(m.reports) - m.cfg.ReportLimit; over > 0 {
		m.reports = append([]CallbackRecord(nil), m.reports[over:]...)
	}
	m.mu.Unlock()
	observability.RecordCallback(cb.Name, cb.Status)
}

func (m *Manager) Port() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.port
}

func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase == PhaseListening
}

func (m *Manager) Killed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase == PhaseKilled
}

func (m *Manager) Phase() LifecyclePhase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// LaunchStatus describes one launch handle for operators.
type LaunchStatus struct {
	LaunchID  string    `json:"launch_id,omitempty"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
	ExitCode  int       `json:"exit_code"`
	Error     string    `json:"error,omitempty"`
}

// TileStatus describes one known tile for operators.
type TileStatus struct {
	Path         string        `json:"path"`
	Active       bool          `json:"active"`
	RegisteredAt time.Time     `json:"registered_at"`
	Launch       *LaunchStatus `json:"launch,omitempty"`
}

// Tiles snapshots the known set with activation and launch state.
func (m *Manager) Tiles() map[string]TileStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]TileStatus, len(m.tiles))
	for name, t := range m.tiles {
		st := TileStatus{Path: t.Path()}
		if act, ok := m.active[name]; ok {
			st.Active = true
			st.RegisteredAt = act.registeredAt
		}
		if rec, ok := m.procs[name]; ok {
			ls := LaunchStatus{
				LaunchID:  rec.launchID,
				State:     rec.state,
				StartedAt: rec.startedAt,
				ExitCode:  rec.exitCode,
			}
			if rec.err != nil {
				ls.Error = rec.err.Error()
			}
			st.Launch = &ls
		}
		out[name] = st
	}
	return out
}

// QueueSnapshot deep-copies every queue entry, drained entries included.
func (m *Manager) QueueSnapshot() map[string][]Action {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]Action, len(m.queues))
	for name, queue := range m.queues {
		copied := make([]Action, len(queue))
		for i, a := range queue {
			copied[i] = Action{Kind: a.Kind, Values: copyValues(a.Values)}
		}
		out[name] = copied
	}
	return out
}

// RecentCallbacks returns up to limit reports, newest last. A limit of
// zero or less returns everything retained.
func (m *Manager) RecentCallbacks(limit int) []CallbackRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.reports) {
		limit = len(m.reports)
	}
	out := make([]CallbackRecord, limit)
	copy(out, m.reports[len(m.reports)-limit:])
	return out
}

// copyValues guards queue contents against caller mutation.
func copyValues(in []any) []any {
	if len(in) == 0 {
		return []any{}
	}
	out := make([]any, len(in))
	copy(out, in)
	return out
}
