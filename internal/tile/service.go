package tile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/mosaicctl/internal/acts"
	"github.com/danmuck/mosaicctl/internal/protocol"
)

var (
	ErrNameRequired  = errors.New("tile: worker name required")
	ErrTableRequired = errors.New("tile: action table required")
)

// DefaultPollInterval matches the manager's expectations for a
// responsive worker.
const DefaultPollInterval = time.Second / 30

// ServiceConfig drives one worker poll loop.
type ServiceConfig struct {
	Name           string
	Port           int
	PollInterval   time.Duration
	RequestTimeout time.Duration
	Table          *acts.Table
	Client         *Client
}

// Service is the worker side of the protocol: register once, poll for
// the queue head, execute at most one action at a time, acknowledge it,
// and unregister when told to stop.
type Service struct {
	cfg    ServiceConfig
	client *Client
	table  *acts.Table
}

func NewService(cfg ServiceConfig) (*Service, error) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		return nil, ErrNameRequired
	}
	if cfg.Table == nil {
		return nil, ErrTableRequired
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	client := cfg.Client
	if client == nil {
		cc := DefaultClientConfig()
		cc.Port = cfg.Port
		if cfg.RequestTimeout > 0 {
			cc.Timeout = cfg.RequestTimeout
		}
		client = NewClientWithConfig(cc)
	}
	return &Service{cfg: cfg, client: client, table: cfg.Table}, nil
}

// Run registers the worker and polls until a terminate action lands or
// the context ends. A nil return means the worker left the control
// plane cleanly; losing the manager mid-loop is an error.
func (s *Service) Run(ctx context.Context) error {
	if err := s.client.Register(s.cfg.Name); err != nil {
		return err
	}
	log.Info().Str("tile", s.cfg.Name).Int("port", s.cfg.Port).Msg("tile_registered")

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := s.client.Unregister(s.cfg.Name); err != nil {
				log.Warn().Str("tile", s.cfg.Name).Err(err).Msg("unregister_failed")
			} else {
				log.Info().Str("tile", s.cfg.Name).Msg("tile_unregistered")
			}
			return nil
		case <-ticker.C:
			done, err := s.pollOnce()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// pollOnce asks for work and executes at most one action. It reports
// done when the terminate action completed and the worker unregistered.
func (s *Service) pollOnce() (bool, error) {
	actions, err := s.client.AskAction(s.cfg.Name)
	if err != nil {
		return false, err
	}
	if len(actions) == 0 {
		return false, nil
	}
	kind := headKind(actions)
	if len(actions) > 1 {
		log.Error().Str("tile", s.cfg.Name).Int("count", len(actions)).Msg("ambiguous_action_head")
		err := s.client.Callback(protocol.Callback{
			Name:   s.cfg.Name,
			Action: kind,
			Status: 1,
			Error:  fmt.Sprintf("ambiguous action head: %d entries", len(actions)),
		})
		return false, err
	}

	execErr := s.table.Execute(kind, actions[kind])
	if errors.Is(execErr, acts.ErrUnknownAction) {
		// Leave the head queued; the operator may register the kind or
		// pop it by hand.
		log.Warn().Str("tile", s.cfg.Name).Str("action", kind).Msg("unknown_action_kind")
		return false, nil
	}

	cb := protocol.Callback{Name: s.cfg.Name, Action: kind, Status: 0}
	if execErr != nil {
		cb.Status = 1
		cb.Error = execErr.Error()
		log.Warn().Str("tile", s.cfg.Name).Str("action", kind).Err(execErr).Msg("action_failed")
	} else {
		log.Debug().Str("tile", s.cfg.Name).Str("action", kind).Msg("action_executed")
	}
	if err := s.client.Callback(cb); err != nil {
		return false, err
	}

	if execErr == nil && kind == s.table.Terminate() {
		if err := s.client.Unregister(s.cfg.Name); err != nil {
			return true, err
		}
		log.Info().Str("tile", s.cfg.Name).Msg("tile_stopped")
		return true, nil
	}
	return false, nil
}

// headKind picks the action kind to act on, lexicographically first when
// a misbehaving control plane sends more than one.
func headKind(actions protocol.ActionMap) string {
	kinds := make([]string, 0, len(actions))
	for kind := range actions {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds[0]
}
