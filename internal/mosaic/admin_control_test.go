package mosaic

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/danmuck/mosaicctl/internal/protocol"
	"github.com/danmuck/mosaicctl/internal/testutil/testlog"
)

func TestAdminControlRosterActions(t *testing.T) {
	testlog.Start(t)

	m := newTestManager(t, DefaultManagerConfig())

	resp := m.handleAdminControlRequest(adminControlRequest{Action: "add_tile", Path: "/opt/mosaic/tiles/alpha"})
	if !resp.OK {
		t.Fatalf("add_tile failed: %+v", resp)
	}
	data, ok := resp.Data.(gin.H)
	if !ok || data["tile"] != "alpha" {
		t.Fatalf("unexpected add_tile data: %+v", resp.Data)
	}

	resp = m.handleAdminControlRequest(adminControlRequest{Action: "add_tile", Path: "/opt/mosaic/tiles/alpha"})
	if resp.OK || !strings.Contains(resp.Error, "duplicate") {
		t.Fatalf("expected duplicate rejection, got %+v", resp)
	}
	resp = m.handleAdminControlRequest(adminControlRequest{Action: "add_tile"})
	if resp.OK {
		t.Fatalf("expected empty path rejection, got %+v", resp)
	}

	resp = m.handleAdminControlRequest(adminControlRequest{Action: "tiles"})
	tiles, ok := resp.Data.(map[string]TileStatus)
	if !resp.OK || !ok || len(tiles) != 1 {
		t.Fatalf("unexpected tiles response: %+v", resp)
	}

	resp = m.handleAdminControlRequest(adminControlRequest{Action: "status"})
	status, ok := resp.Data.(gin.H)
	if !resp.OK || !ok {
		t.Fatalf("unexpected status response: %+v", resp)
	}
	if status["manager"] != "mosaic" || status["known"] != 1 || status["active"] != 0 {
		t.Fatalf("unexpected status payload: %v", status)
	}

	resp = m.handleAdminControlRequest(adminControlRequest{Action: "remove_tile", Name: "alpha"})
	if !resp.OK || resp.Data.(gin.H)["known"] != true {
		t.Fatalf("unexpected remove response: %+v", resp)
	}
	resp = m.handleAdminControlRequest(adminControlRequest{Action: "remove_tile", Name: "alpha"})
	if !resp.OK || resp.Data.(gin.H)["known"] != false {
		t.Fatalf("expected unknown remove to report known=false, got %+v", resp)
	}
}

func TestAdminControlQueueActions(t *testing.T) {
	testlog.Start(t)

	m := newTestManager(t, DefaultManagerConfig())
	if err := m.AddTile(mustTile(t, "/opt/mosaic/tiles/alpha")); err != nil {
		t.Fatalf("add tile: %v", err)
	}

	resp := m.handleAdminControlRequest(adminControlRequest{Action: "request_action", Name: "alpha", Kind: "blink", Values: []any{"led"}})
	if !resp.OK {
		t.Fatalf("request_action failed: %+v", resp)
	}
	resp = m.handleAdminControlRequest(adminControlRequest{Action: "request_action", Name: "ghost", Kind: "blink"})
	if resp.OK || !strings.Contains(resp.Error, "unknown tile") {
		t.Fatalf("expected unknown tile rejection, got %+v", resp)
	}

	resp = m.handleAdminControlRequest(adminControlRequest{Action: "check_queue", Name: "alpha"})
	head, ok := resp.Data.(map[string][]any)
	if !resp.OK || !ok || len(head["blink"]) != 1 {
		t.Fatalf("unexpected check_queue response: %+v", resp)
	}

	resp = m.handleAdminControlRequest(adminControlRequest{Action: "queues"})
	queues, ok := resp.Data.(map[string][]Action)
	if !resp.OK || !ok || len(queues["alpha"]) != 1 {
		t.Fatalf("unexpected queues response: %+v", resp)
	}

	resp = m.handleAdminControlRequest(adminControlRequest{Action: "pop_queue", Name: "alpha"})
	if !resp.OK {
		t.Fatalf("pop_queue failed: %+v", resp)
	}
	resp = m.handleAdminControlRequest(adminControlRequest{Action: "pop_queue", Name: "alpha"})
	if resp.OK || !strings.Contains(resp.Error, "queue empty") {
		t.Fatalf("expected queue empty rejection, got %+v", resp)
	}

	m.handleCallback(protocol.Callback{Name: "alpha", Action: "blink", Status: 1, Error: "lost"})
	resp = m.handleAdminControlRequest(adminControlRequest{Action: "callbacks", Limit: 10})
	reports, ok := resp.Data.([]CallbackRecord)
	if !resp.OK || !ok || len(reports) != 1 {
		t.Fatalf("unexpected callbacks response: %+v", resp)
	}

	resp = m.handleAdminControlRequest(adminControlRequest{Action: "run_tile", Name: "ghost"})
	if resp.OK || !strings.Contains(resp.Error, "unknown tile") {
		t.Fatalf("expected run_tile unknown rejection, got %+v", resp)
	}
	resp = m.handleAdminControlRequest(adminControlRequest{Action: "run_tile", Name: "alpha"})
	if resp.OK || !strings.Contains(resp.Error, "not listening") {
		t.Fatalf("expected run_tile not-listening rejection, got %+v", resp)
	}

	resp = m.handleAdminControlRequest(adminControlRequest{Action: "warp"})
	if resp.OK || !strings.Contains(resp.Error, "unknown admin action") {
		t.Fatalf("expected unknown action rejection, got %+v", resp)
	}
}

func TestAdminEndpointEnvelope(t *testing.T) {
	testlog.Start(t)

	m := newTestManager(t, DefaultManagerConfig())

	req := httptest.NewRequest(http.MethodPost, "/admin", strings.NewReader(`{"action": "status"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	m.engine.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected admin status code: %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["ok"] != true {
		t.Fatalf("expected ok envelope, got %v", body)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin", strings.NewReader(`{"action":`))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	m.engine.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed admin request, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["ok"] != false || body["error"] == "" {
		t.Fatalf("expected error envelope, got %v", body)
	}
}
