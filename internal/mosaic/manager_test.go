package mosaic

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/mosaicctl/internal/protocol"
	"github.com/danmuck/mosaicctl/internal/testutil/testlog"
)

type fakeProcess struct {
	id      string
	exit    int
	release chan struct{}
}

func (p *fakeProcess) LaunchID() string { return p.id }

func (p *fakeProcess) Wait() int {
	<-p.release
	return p.exit
}

type fakeLauncher struct {
	mu    sync.Mutex
	names []string
	ports []int
	procs []*fakeProcess
	err   error
}

func (l *fakeLauncher) Launch(t Tile, port int) (TileProcess, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, t.Name())
	l.ports = append(l.ports, port)
	if l.err != nil {
		return nil, l.err
	}
	proc := &fakeProcess{id: fmt.Sprintf("launch.%d", len(l.names)), release: make(chan struct{})}
	l.procs = append(l.procs, proc)
	return proc, nil
}

func (l *fakeLauncher) launched() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.names)
}

func (l *fakeLauncher) proc(i int) *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.procs[i]
}

func (l *fakeLauncher) port(i int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ports[i]
}

// newTestManager guarantees the live slot is released when the test
// ends, failed assertions included.
func newTestManager(t *testing.T, cfg ManagerConfig) *Manager {
	t.Helper()
	m := NewManagerWithConfig(cfg)
	t.Cleanup(func() { _ = m.Kill() })
	return m
}

func mustTile(t *testing.T, path string) Tile {
	t.Helper()
	tile, err := NewTile(path)
	if err != nil {
		t.Fatalf("new tile %s: %v", path, err)
	}
	return tile
}

func TestManagerSlotSharedUntilKill(t *testing.T) {
	testlog.Start(t)

	first := newTestManager(t, DefaultManagerConfig())
	second := NewManager()
	if first != second {
		t.Fatalf("expected constructors to share the live instance")
	}

	if err := first.Kill(); err != nil {
		t.Fatalf("kill: %v", err)
	}
	if !first.Killed() {
		t.Fatalf("expected killed phase, got %q", first.Phase())
	}

	fresh := newTestManager(t, DefaultManagerConfig())
	if fresh == first {
		t.Fatalf("expected a fresh instance after kill")
	}

	// The dead instance ignores mutation.
	if err := first.AddTile(mustTile(t, "/opt/mosaic/tiles/alpha")); err != nil {
		t.Fatalf("add tile on killed manager: %v", err)
	}
	if len(first.Tiles()) != 0 {
		t.Fatalf("expected killed manager to stay empty")
	}
	if err := first.RequestAction("alpha", "blink", nil); err != nil {
		t.Fatalf("request action on killed manager: %v", err)
	}
	if err := first.PopQueue("alpha"); err != nil {
		t.Fatalf("pop queue on killed manager: %v", err)
	}
	if err := first.registerTile("alpha"); err != nil {
		t.Fatalf("register on killed manager: %v", err)
	}
	if len(first.QueueSnapshot()) != 0 {
		t.Fatalf("expected killed manager queues to stay empty")
	}
	if err := first.Kill(); err != nil {
		t.Fatalf("second kill: %v", err)
	}
}

func TestManagerConfigDefaults(t *testing.T) {
	testlog.Start(t)

	m := newTestManager(t, ManagerConfig{Port: -5})
	if m.cfg.ID != "mosaic" {
		t.Fatalf("unexpected default id: %q", m.cfg.ID)
	}
	if m.cfg.Host != "127.0.0.1" {
		t.Fatalf("unexpected default host: %q", m.cfg.Host)
	}
	if m.cfg.Port != 0 {
		t.Fatalf("expected out-of-range port reset, got %d", m.cfg.Port)
	}
	if m.cfg.ReportLimit != 64 {
		t.Fatalf("unexpected default report limit: %d", m.cfg.ReportLimit)
	}
	if m.cfg.Launcher == nil {
		t.Fatalf("expected default launcher")
	}
}

func TestTileRosterAndQueueDiscipline(t *testing.T) {
	testlog.Start(t)

	m := newTestManager(t, DefaultManagerConfig())
	alpha := mustTile(t, "/opt/mosaic/tiles/alpha.bin")
	if alpha.Name() != "alpha" {
		t.Fatalf("unexpected derived name: %q", alpha.Name())
	}

	if err := m.AddTile(alpha); err != nil {
		t.Fatalf("add tile: %v", err)
	}
	if err := m.AddTile(alpha); !errors.Is(err, ErrDuplicateTile) {
		t.Fatalf("expected ErrDuplicateTile, got %v", err)
	}
	if err := m.AddTile(Tile{}); !errors.Is(err, ErrInvalidTile) {
		t.Fatalf("expected ErrInvalidTile, got %v", err)
	}
	if err := m.RequestAction("ghost", "blink", nil); !errors.Is(err, ErrUnknownTile) {
		t.Fatalf("expected ErrUnknownTile, got %v", err)
	}

	if err := m.RequestAction("alpha", "blink", []any{"led", float64(3)}); err != nil {
		t.Fatalf("request blink: %v", err)
	}
	if err := m.RequestAction("alpha", "shutdown", nil); err != nil {
		t.Fatalf("request shutdown: %v", err)
	}

	// Peeking never consumes.
	for i := 0; i < 2; i++ {
		head := m.CheckQueue("alpha")
		values, ok := head["blink"]
		if !ok {
			t.Fatalf("expected blink at queue head, got %v", head)
		}
		if len(values) != 2 || values[0] != "led" {
			t.Fatalf("unexpected head values: %v", values)
		}
	}

	if err := m.PopQueue("alpha"); err != nil {
		t.Fatalf("pop blink: %v", err)
	}
	if _, ok := m.CheckQueue("alpha")["shutdown"]; !ok {
		t.Fatalf("expected shutdown after pop")
	}
	if err := m.PopQueue("alpha"); err != nil {
		t.Fatalf("pop shutdown: %v", err)
	}

	// Drained is not the same as never enqueued.
	if err := m.PopQueue("alpha"); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("expected ErrQueueEmpty, got %v", err)
	}
	if err := m.PopQueue("ghost"); !errors.Is(err, ErrNoQueueEntry) {
		t.Fatalf("expected ErrNoQueueEntry, got %v", err)
	}
	if queue, ok := m.QueueSnapshot()["alpha"]; !ok || len(queue) != 0 {
		t.Fatalf("expected retained empty queue entry, got %v", m.QueueSnapshot())
	}

	// Removal discards the queue entry; re-adding starts clean.
	m.RemoveTile(alpha)
	m.RemoveTile(alpha)
	if err := m.PopQueue("alpha"); !errors.Is(err, ErrNoQueueEntry) {
		t.Fatalf("expected ErrNoQueueEntry after removal, got %v", err)
	}
	if err := m.AddTile(alpha); err != nil {
		t.Fatalf("re-add tile: %v", err)
	}
	if head := m.CheckQueue("alpha"); len(head) != 0 {
		t.Fatalf("expected empty head after re-add, got %v", head)
	}
}

func TestQueueValuesCopiedFromCaller(t *testing.T) {
	testlog.Start(t)

	m := newTestManager(t, DefaultManagerConfig())
	if err := m.AddTile(mustTile(t, "/opt/mosaic/tiles/alpha")); err != nil {
		t.Fatalf("add tile: %v", err)
	}
	values := []any{"original"}
	if err := m.RequestAction("alpha", "blink", values); err != nil {
		t.Fatalf("request action: %v", err)
	}
	values[0] = "mutated"
	head := m.CheckQueue("alpha")
	if head["blink"][0] != "original" {
		t.Fatalf("queue contents shared with caller slice: %v", head)
	}
}

func TestRegistrationLifecycle(t *testing.T) {
	testlog.Start(t)

	m := newTestManager(t, DefaultManagerConfig())
	alpha := mustTile(t, "/opt/mosaic/tiles/alpha")

	if err := m.registerTile("alpha"); !errors.Is(err, ErrTileNotFound) {
		t.Fatalf("expected ErrTileNotFound, got %v", err)
	}
	if err := m.AddTile(alpha); err != nil {
		t.Fatalf("add tile: %v", err)
	}
	if err := m.registerTile("alpha"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.registerTile("alpha"); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}

	status := m.Tiles()["alpha"]
	if !status.Active || status.RegisteredAt.IsZero() {
		t.Fatalf("expected active tile with timestamp, got %+v", status)
	}

	m.unregisterTile("alpha")
	m.unregisterTile("alpha")
	if m.Tiles()["alpha"].Active {
		t.Fatalf("expected inactive tile after unregister")
	}
	if err := m.registerTile("alpha"); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	// Removal clears activation alongside the roster entry.
	m.RemoveTile(alpha)
	if err := m.registerTile("alpha"); !errors.Is(err, ErrTileNotFound) {
		t.Fatalf("expected ErrTileNotFound after removal, got %v", err)
	}
}

func TestListenerLifecycleRetainsPort(t *testing.T) {
	testlog.Start(t)

	m := newTestManager(t, DefaultManagerConfig())
	if err := m.Stop(); err != nil {
		t.Fatalf("stop before run: %v", err)
	}
	if m.Phase() != PhaseIdle {
		t.Fatalf("expected idle phase, got %q", m.Phase())
	}

	port, err := m.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if port <= 0 || m.Port() != port || !m.Running() {
		t.Fatalf("unexpected listener state: port=%d running=%v", m.Port(), m.Running())
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected health status: %d", resp.StatusCode)
	}

	rebound, err := m.Run()
	if err != nil {
		t.Fatalf("run while listening: %v", err)
	}
	if rebound != port {
		t.Fatalf("expected rebind on port %d, got %d", port, rebound)
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if m.Running() || m.Phase() != PhaseStopped || m.Port() != port {
		t.Fatalf("unexpected stopped state: phase=%q port=%d", m.Phase(), m.Port())
	}
	if _, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port)); err == nil {
		t.Fatalf("expected refused connection after stop")
	}

	resumed, err := m.Run()
	if err != nil {
		t.Fatalf("run after stop: %v", err)
	}
	if resumed != port {
		t.Fatalf("expected retained port %d, got %d", port, resumed)
	}

	if err := m.Kill(); err != nil {
		t.Fatalf("kill: %v", err)
	}
	ignored, err := m.Run()
	if err != nil {
		t.Fatalf("run after kill: %v", err)
	}
	if ignored != port || m.Running() {
		t.Fatalf("expected killed manager to ignore run, port=%d running=%v", ignored, m.Running())
	}
}

func TestRunTileLaunchExitUnregisters(t *testing.T) {
	testlog.Start(t)

	launcher := &fakeLauncher{}
	cfg := DefaultManagerConfig()
	cfg.Launcher = launcher
	m := newTestManager(t, cfg)
	alpha := mustTile(t, "/opt/mosaic/tiles/alpha")

	if err := m.RunTile(alpha); !errors.Is(err, ErrNotListening) {
		t.Fatalf("expected ErrNotListening, got %v", err)
	}

	port, err := m.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := m.AddTile(alpha); err != nil {
		t.Fatalf("add tile: %v", err)
	}
	if err := m.registerTile("alpha"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.RunTile(alpha); err != nil {
		t.Fatalf("run tile: %v", err)
	}
	if err := m.RunTile(Tile{}); !errors.Is(err, ErrInvalidTile) {
		t.Fatalf("expected ErrInvalidTile, got %v", err)
	}

	ok := waitForCondition(2*time.Second, 10*time.Millisecond, func() bool {
		status := m.Tiles()["alpha"]
		return status.Launch != nil && status.Launch.State == LaunchStateRunning
	})
	if !ok {
		t.Fatalf("launch never reached running: %+v", m.Tiles()["alpha"])
	}
	if launcher.launched() != 1 || launcher.port(0) != port {
		t.Fatalf("unexpected launch recording: n=%d port=%d", launcher.launched(), launcher.port(0))
	}

	launcher.proc(0).exit = 9
	close(launcher.proc(0).release)
	ok = waitForCondition(2*time.Second, 10*time.Millisecond, func() bool {
		status := m.Tiles()["alpha"]
		return status.Launch != nil && status.Launch.State == LaunchStateExited && !status.Active
	})
	if !ok {
		t.Fatalf("exit never observed: %+v", m.Tiles()["alpha"])
	}
	if got := m.Tiles()["alpha"].Launch.ExitCode; got != 9 {
		t.Fatalf("unexpected exit code: %d", got)
	}

	// A relaunch replaces the tracked handle.
	if err := m.RunTile(alpha); err != nil {
		t.Fatalf("relaunch: %v", err)
	}
	ok = waitForCondition(2*time.Second, 10*time.Millisecond, func() bool {
		return launcher.launched() == 2
	})
	if !ok {
		t.Fatalf("relaunch never started")
	}
	close(launcher.proc(1).release)
}

func TestRunTileLaunchFailureRecorded(t *testing.T) {
	testlog.Start(t)

	launcher := &fakeLauncher{err: errors.New("spawn refused")}
	cfg := DefaultManagerConfig()
	cfg.Launcher = launcher
	m := newTestManager(t, cfg)
	alpha := mustTile(t, "/opt/mosaic/tiles/alpha")

	if _, err := m.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := m.AddTile(alpha); err != nil {
		t.Fatalf("add tile: %v", err)
	}
	if err := m.RunTile(alpha); err != nil {
		t.Fatalf("run tile: %v", err)
	}

	ok := waitForCondition(2*time.Second, 10*time.Millisecond, func() bool {
		status := m.Tiles()["alpha"]
		return status.Launch != nil && status.Launch.State == LaunchStateFailed
	})
	if !ok {
		t.Fatalf("failure never recorded: %+v", m.Tiles()["alpha"])
	}
	if status := m.Tiles()["alpha"]; status.Launch.Error == "" {
		t.Fatalf("expected launch error text, got %+v", status.Launch)
	}
}

func TestCallbackPopDiscipline(t *testing.T) {
	testlog.Start(t)

	m := newTestManager(t, DefaultManagerConfig())
	if err := m.AddTile(mustTile(t, "/opt/mosaic/tiles/alpha")); err != nil {
		t.Fatalf("add tile: %v", err)
	}
	if err := m.RequestAction("alpha", "blink", nil); err != nil {
		t.Fatalf("request action: %v", err)
	}

	popped := m.handleCallback(protocol.Callback{Name: "alpha", Action: "blink", Status: 0})
	if popped != true {
		t.Fatalf("expected true pop, got %v", popped)
	}
	popped = m.handleCallback(protocol.Callback{Name: "alpha", Action: "blink", Status: 1, Error: "led stuck"})
	if popped != false {
		t.Fatalf("expected false pop on drained queue, got %v", popped)
	}
	popped = m.handleCallback(protocol.Callback{Name: "ghost", Action: "blink", Status: 0})
	text, ok := popped.(string)
	if !ok || text == "" {
		t.Fatalf("expected error text for unknown tile, got %v", popped)
	}

	reports := m.RecentCallbacks(0)
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}
	if reports[1].Status != 1 || reports[1].Error != "led stuck" {
		t.Fatalf("unexpected failure report: %+v", reports[1])
	}
	if got := m.RecentCallbacks(1); len(got) != 1 || got[0].Tile != "ghost" {
		t.Fatalf("expected newest report only, got %+v", got)
	}
}

func TestCallbackReportsBounded(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultManagerConfig()
	cfg.ReportLimit = 2
	m := newTestManager(t, cfg)
	for i := 0; i < 5; i++ {
		m.handleCallback(protocol.Callback{Name: "alpha", Action: fmt.Sprintf("act.%d", i), Status: 0})
	}
	reports := m.RecentCallbacks(0)
	if len(reports) != 2 {
		t.Fatalf("expected bounded reports, got %d", len(reports))
	}
	if reports[0].Action != "act.3" || reports[1].Action != "act.4" {
		t.Fatalf("expected newest reports retained, got %+v", reports)
	}
}

func waitForCondition(timeout time.Duration, interval time.Duration, fn func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(interval)
	}
	return fn()
}
