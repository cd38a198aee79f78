package mosaic

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// adminControlRequest is one admin action envelope accepted on the admin
// route.
type adminControlRequest struct {
	Action string `json:"action"`
	Name   string `json:"name,omitempty"`
	Path   string `json:"path,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Values []any  `json:"values,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// adminControlResponse is one admin action result envelope.
type adminControlResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// handleAdmin decodes and executes one admin request. Results ride a 200
// either way; clients branch on the ok field.
func (m *Manager) handleAdmin(c *gin.Context) {
	var req adminControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, adminControlResponse{Error: fmt.Sprintf("decode admin request: %v", err)})
		return
	}
	c.JSON(http.StatusOK, m.handleAdminControlRequest(req))
}

// handleAdminControlRequest maps one admin action onto Manager state.
func (m *Manager) handleAdminControlRequest(req adminControlRequest) adminControlResponse {
	action := strings.TrimSpace(req.Action)
	switch action {
	case "status":
		return adminControlResponse{OK: true, Data: m.statusData()}
	case "tiles":
		return adminControlResponse{OK: true, Data: m.Tiles()}
	case "queues":
		return adminControlResponse{OK: true, Data: m.QueueSnapshot()}
	case "callbacks":
		return adminControlResponse{OK: true, Data: m.RecentCallbacks(req.Limit)}
	case "add_tile":
		t, err := NewTile(req.Path)
		if err != nil {
			return adminControlResponse{Error: err.Error()}
		}
		if err := m.AddTile(t); err != nil {
			return adminControlResponse{Error: err.Error()}
		}
		return adminControlResponse{OK: true, Data: gin.H{"tile": t.Name(), "path": t.Path()}}
	case "remove_tile":
		t, ok := m.lookupTile(req.Name)
		if ok {
			m.RemoveTile(t)
		}
		return adminControlResponse{OK: true, Data: gin.H{"tile": strings.TrimSpace(req.Name), "known": ok}}
	case "run_tile":
		t, err := m.adminResolveTile(req)
		if err != nil {
			return adminControlResponse{Error: err.Error()}
		}
		if err := m.RunTile(t); err != nil {
			return adminControlResponse{Error: err.Error()}
		}
		return adminControlResponse{OK: true, Data: gin.H{"tile": t.Name()}}
	case "request_action":
		if err := m.RequestAction(req.Name, req.Kind, req.Values); err != nil {
			return adminControlResponse{Error: err.Error()}
		}
		return adminControlResponse{OK: true}
	case "check_queue":
		return adminControlResponse{OK: true, Data: m.CheckQueue(req.Name)}
	case "pop_queue":
		if err := m.PopQueue(req.Name); err != nil {
			return adminControlResponse{Error: err.Error()}
		}
		return adminControlResponse{OK: true}
	case "stop":
		go func() {
			if err := m.Stop(); err != nil {
				log.Error().Err(err).Msg("admin_stop_failed")
			}
		}()
		return adminControlResponse{OK: true}
	default:
		return adminControlResponse{Error: fmt.Sprintf("unknown admin action %q", req.Action)}
	}
}

// adminResolveTile picks the tile to launch: an explicit path wins,
// otherwise the name must already be known.
func (m *Manager) adminResolveTile(req adminControlRequest) (Tile, error) {
	if strings.TrimSpace(req.Path) != "" {
		return NewTile(req.Path)
	}
	t, ok := m.lookupTile(req.Name)
	if !ok {
		return Tile{}, fmt.Errorf("%w: %q", ErrUnknownTile, strings.TrimSpace(req.Name))
	}
	return t, nil
}

// lookupTile fetches a known tile by name.
func (m *Manager) lookupTile(name string) (Tile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tiles[strings.TrimSpace(name)]
	return t, ok
}

// statusData is the status payload served to admin clients.
func (m *Manager) statusData() gin.H {
	tiles := m.Tiles()
	active := 0
	for _, st := range tiles {
		if st.Active {
			active++
		}
	}
	return gin.H{
		"manager": m.cfg.ID,
		"phase":   m.Phase(),
		"port":    m.Port(),
		"running": m.Running(),
		"killed":  m.Killed(),
		"known":   len(tiles),
		"active":  active,
	}
}
