package control_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ridgebreaker/ridgebreaker/internal/bgp"
	"github.com/ridgebreaker/ridgebreaker/internal/control"
	"github.com/ridgebreaker/ridgebreaker/internal/isis"
	"github.com/ridgebreaker/ridgebreaker/internal/ldp"
	"github.com/ridgebreaker/ridgebreaker/internal/timing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*control.Server, *bgp.Manager, *ldp.Manager, *isis.Manager) {
	t.Helper()
	wheel := timing.NewWithClock(func() time.Time { return time.Now() })
	bgpMgr := bgp.NewManager(wheel, testLogger())
	ldpMgr := ldp.NewManager(wheel, testLogger(), nil)
	isisMgr := isis.NewManager(wheel, testLogger(), nil)
	return control.NewServer(bgpMgr, ldpMgr, isisMgr, testLogger()), bgpMgr, ldpMgr, isisMgr
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, srv.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestBGPSessionsListAndTeardown(t *testing.T) {
	t.Parallel()
	c, bgpMgr, _, _ := newTestServer(t)
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	sess, err := bgpMgr.CreateSession(bgp.Config{
		LocalAddress: netip.MustParseAddr("10.0.0.1"),
		PeerAddress:  netip.MustParseAddr("10.0.0.2"),
		LocalAS:      65001,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	resp := doJSON(t, srv, http.MethodGet, "/bgp/sessions", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var sessions []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0]["state"] != "closed" {
		t.Fatalf("expected state closed, got %v", sessions[0]["state"])
	}

	resp2 := doJSON(t, srv, http.MethodPost, "/bgp/teardown", map[string]any{"id": sess.ID()})
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp2.StatusCode)
	}
}

func TestBGPTeardownAll(t *testing.T) {
	t.Parallel()
	c, bgpMgr, _, _ := newTestServer(t)
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	for i := 0; i < 2; i++ {
		_, err := bgpMgr.CreateSession(bgp.Config{
			LocalAddress: netip.MustParseAddr("10.0.0.1"),
			PeerAddress:  netip.MustParseAddr(fmt.Sprintf("10.0.0.%d", i+10)),
			LocalAS:      65001,
		})
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	resp := doJSON(t, srv, http.MethodPost, "/bgp/teardown-all", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func TestBGPRawUpdateList(t *testing.T) {
	t.Parallel()
	c, bgpMgr, _, _ := newTestServer(t)
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	for i := 0; i < 2; i++ {
		_, err := bgpMgr.CreateSession(bgp.Config{
			LocalAddress: netip.MustParseAddr("10.0.0.1"),
			PeerAddress:  netip.MustParseAddr(fmt.Sprintf("10.0.0.%d", i+20)),
			LocalAS:      65001,
		})
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "updates.raw")
	if err := os.WriteFile(path, []byte{0x01, 0x02, 0x03}, 0o644); err != nil {
		t.Fatalf("write raw-update file: %v", err)
	}

	resp := doJSON(t, srv, http.MethodPost, "/bgp/raw-update-list", map[string]any{"file": path, "messages": 1, "pdus": 1})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func TestBGPTeardownUnknownSession(t *testing.T) {
	t.Parallel()
	c, _, _, _ := newTestServer(t)
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp := doJSON(t, srv, http.MethodPost, "/bgp/teardown", map[string]any{"id": 999})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestLDPSessionsList(t *testing.T) {
	t.Parallel()
	c, _, ldpMgr, _ := newTestServer(t)
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	_, err := ldpMgr.CreateSession(ldp.Config{
		LocalAddress: netip.MustParseAddr("10.0.0.2"),
		PeerAddress:  netip.MustParseAddr("10.0.0.1"),
		LSRID:        0x0A000002,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	resp := doJSON(t, srv, http.MethodGet, "/ldp/sessions", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var sessions []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
}

func TestLDPTeardownAll(t *testing.T) {
	t.Parallel()
	c, _, ldpMgr, _ := newTestServer(t)
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	for i := 0; i < 2; i++ {
		_, err := ldpMgr.CreateSession(ldp.Config{
			LocalAddress: netip.MustParseAddr("10.0.0.2"),
			PeerAddress:  netip.MustParseAddr(fmt.Sprintf("10.0.0.%d", i+30)),
			LSRID:        0x0A000002,
		})
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	resp := doJSON(t, srv, http.MethodPost, "/ldp/teardown-all", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func TestLDPRawUpdateList(t *testing.T) {
	t.Parallel()
	c, _, ldpMgr, _ := newTestServer(t)
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	for i := 0; i < 2; i++ {
		_, err := ldpMgr.CreateSession(ldp.Config{
			LocalAddress: netip.MustParseAddr("10.0.0.2"),
			PeerAddress:  netip.MustParseAddr(fmt.Sprintf("10.0.0.%d", i+40)),
			LSRID:        0x0A000002,
		})
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "updates.raw")
	if err := os.WriteFile(path, []byte{0x01, 0x02, 0x03}, 0o644); err != nil {
		t.Fatalf("write raw-update file: %v", err)
	}

	resp := doJSON(t, srv, http.MethodPost, "/ldp/raw-update-list", map[string]any{"file": path, "messages": 1, "pdus": 1})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func TestISISUpDownAndList(t *testing.T) {
	t.Parallel()
	c, _, _, isisMgr := newTestServer(t)
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	isisMgr.AddInterface(isis.Config{
		Interface: "eth0",
		P2P:       true,
		Levels:    3,
	})

	resp := doJSON(t, srv, http.MethodPost, "/isis/up", map[string]any{"interface": "eth0"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	listResp := doJSON(t, srv, http.MethodGet, "/isis/adjacencies", nil)
	defer listResp.Body.Close()
	var adjs []map[string]any
	if err := json.NewDecoder(listResp.Body).Decode(&adjs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(adjs) != 2 {
		t.Fatalf("expected 2 adjacencies (L1+L2), got %d", len(adjs))
	}
	for _, a := range adjs {
		if a["state"] != "up" {
			t.Fatalf("expected state up, got %v", a["state"])
		}
	}

	downResp := doJSON(t, srv, http.MethodPost, "/isis/down", map[string]any{"interface": "eth0", "reason": "test"})
	defer downResp.Body.Close()
	if downResp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", downResp.StatusCode)
	}
}

func TestISISUpUnknownInterface(t *testing.T) {
	t.Parallel()
	c, _, _, _ := newTestServer(t)
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp := doJSON(t, srv, http.MethodPost, "/isis/up", map[string]any{"interface": "ghost0"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestEngineNotConfiguredReturns503(t *testing.T) {
	t.Parallel()
	srvCtl := control.NewServer(nil, nil, nil, testLogger())
	srv := httptest.NewServer(srvCtl.Handler())
	defer srv.Close()

	resp := doJSON(t, srv, http.MethodGet, "/bgp/sessions", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}
