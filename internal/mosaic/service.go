package mosaic

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/mosaicctl/internal/config"
)

// ServiceConfig carries the daemon-level settings for one control-plane
// process.
type ServiceConfig struct {
	ID              string
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	Heartbeat       time.Duration
	ManifestPath    string
}

// DefaultServiceConfig listens on an ephemeral loopback port with a 5s
// heartbeat.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ID:              "mosaic",
		Host:            "127.0.0.1",
		Port:            0,
		ShutdownTimeout: 5 * time.Second,
		Heartbeat:       5 * time.Second,
	}
}

// Service runs a Manager as a long-lived daemon: manifest boot, signal
// handling, heartbeat logging, kill on shutdown.
type Service struct {
	cfg     ServiceConfig
	manager *Manager
}

func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

func NewServiceWithConfig(cfg ServiceConfig) *Service {
	def := DefaultServiceConfig()
	if strings.TrimSpace(cfg.ID) == "" {
		cfg.ID = def.ID
	}
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = def.Host
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = def.Heartbeat
	}
	return &Service{cfg: cfg}
}

// Run owns the process lifecycle: it returns when the process is
// signaled or the boot sequence fails.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.run(ctx)
}

// run boots the manager, applies the manifest, and heartbeats until the
// context ends.
func (s *Service) run(ctx context.Context) error {
	mgr := NewManagerWithConfig(ManagerConfig{
		ID:              s.cfg.ID,
		Host:            s.cfg.Host,
		Port:            s.cfg.Port,
		ShutdownTimeout: s.cfg.ShutdownTimeout,
	})
	s.manager = mgr

	port, err := mgr.Run()
	if err != nil {
		_ = mgr.Kill()
		return err
	}
	log.Info().Str("manager", s.cfg.ID).Int("port", port).Msg("service_started")

	if err := s.applyManifest(mgr); err != nil {
		_ = mgr.Kill()
		return err
	}

	ticker := time.NewTicker(s.cfg.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("manager", s.cfg.ID).Msg("service_shutdown")
			return mgr.Kill()
		case <-ticker.C:
			s.logHeartbeat(mgr)
		}
	}
}

// applyManifest adds every manifest tile and launches the autostart set.
func (s *Service) applyManifest(mgr *Manager) error {
	if strings.TrimSpace(s.cfg.ManifestPath) == "" {
		return nil
	}
	manifest, err := config.LoadManagerManifest(s.cfg.ManifestPath)
	if err != nil {
		return fmt.Errorf("mosaic: apply manifest: %w", err)
	}
	for _, entry := range manifest.Tiles {
		t, err := NewTileNamed(entry.Name, entry.Path)
		if err != nil {
			return fmt.Errorf("mosaic: manifest tile %q: %w", entry.Path, err)
		}
		if err := mgr.AddTile(t); err != nil {
			return fmt.Errorf("mosaic: manifest tile %q: %w", t.Name(), err)
		}
		if entry.Autostart {
			if err := mgr.RunTile(t); err != nil {
				return fmt.Errorf("mosaic: manifest launch %q: %w", t.Name(), err)
			}
		}
	}
	log.Info().Int("tiles", len(manifest.Tiles)).Str("path", s.cfg.ManifestPath).Msg("manifest_applied")
	return nil
}

// logHeartbeat reports coarse state so operators can see liveness.
func (s *Service) logHeartbeat(mgr *Manager) {
	tiles := mgr.Tiles()
	active := 0
	for _, st := range tiles {
		if st.Active {
			active++
		}
	}
	depth := 0
	for _, queue := range mgr.QueueSnapshot() {
		depth += len(queue)
	}
	log.Info().
		Int("known", len(tiles)).
		Int("active", active).
		Int("queued", depth).
		Str("phase", string(mgr.Phase())).
		Msg("heartbeat")
}

// Manager exposes the running manager for tests and embedders.
func (s *Service) Manager() *Manager { return s.manager }
