// Package control implements the JSON-over-HTTP control API fronting the
// BGP, LDP, and IS-IS engines: session enumeration, teardown, raw-update
// injection, and forced disconnect (spec.md §6), in the shape of the
// teacher's ConnectRPC server (internal/server/server.go) but over plain
// net/http + encoding/json rather than generated protobuf stubs
// (SPEC_FULL.md §6.3).
package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/ridgebreaker/ridgebreaker/internal/bgp"
	"github.com/ridgebreaker/ridgebreaker/internal/isis"
	"github.com/ridgebreaker/ridgebreaker/internal/ldp"
	"github.com/ridgebreaker/ridgebreaker/internal/rawupdate"
)

// Server dispatches the JSON control API across all three engines. It
// holds no session state of its own — every operation delegates straight
// to the engine Manager named in the request path.
type Server struct {
	bgp    *bgp.Manager
	ldp    *ldp.Manager
	isis   *isis.Manager
	logger *slog.Logger
}

// NewServer builds a Server over the given engine managers. Any manager
// may be nil if that engine is not configured for this daemon instance;
// requests naming it return 503.
func NewServer(bgpMgr *bgp.Manager, ldpMgr *ldp.Manager, isisMgr *isis.Manager, logger *slog.Logger) *Server {
	return &Server{
		bgp:    bgpMgr,
		ldp:    ldpMgr,
		isis:   isisMgr,
		logger: logger.With(slog.String("component", "control")),
	}
}

// Handler builds the control API's http.Handler, routed by method and
// path using the standard library's Go 1.22+ ServeMux patterns.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /bgp/sessions", s.handleBGPSessions)
	mux.HandleFunc("POST /bgp/teardown", s.handleBGPTeardown)
	mux.HandleFunc("POST /bgp/teardown-all", s.handleBGPTeardownAll)
	mux.HandleFunc("POST /bgp/disconnect", s.handleBGPDisconnect)
	mux.HandleFunc("POST /bgp/raw-update", s.handleBGPRawUpdate)
	mux.HandleFunc("POST /bgp/raw-update-list", s.handleBGPRawUpdateList)

	mux.HandleFunc("GET /ldp/sessions", s.handleLDPSessions)
	mux.HandleFunc("POST /ldp/teardown", s.handleLDPTeardown)
	mux.HandleFunc("POST /ldp/teardown-all", s.handleLDPTeardownAll)
	mux.HandleFunc("POST /ldp/disconnect", s.handleLDPDisconnect)
	mux.HandleFunc("POST /ldp/raw-update", s.handleLDPRawUpdate)
	mux.HandleFunc("POST /ldp/raw-update-list", s.handleLDPRawUpdateList)

	mux.HandleFunc("GET /isis/adjacencies", s.handleISISAdjacencies)
	mux.HandleFunc("POST /isis/up", s.handleISISUp)
	mux.HandleFunc("POST /isis/down", s.handleISISDown)

	return mux
}

// idRequest is the common request body for operations identified by a
// numeric session id (teardown, disconnect).
type idRequest struct {
	ID uint64 `json:"id"`
}

// rawUpdateRequest carries a raw-update injection command (spec.md §3
// "Raw-update descriptor").
type rawUpdateRequest struct {
	ID       uint64 `json:"id"`
	File     string `json:"file"`
	Messages uint32 `json:"messages"`
	PDUs     uint32 `json:"pdus"`
}

// ifaceRequest names an IS-IS interface for up/down commands.
type ifaceRequest struct {
	Interface string `json:"interface"`
	Reason    string `json:"reason,omitempty"`
}

// rawUpdateListRequest carries a raw-update-list command: attach file to
// every registered session rather than one (spec.md §6 "raw-update-list").
type rawUpdateListRequest struct {
	File     string `json:"file"`
	Messages uint32 `json:"messages"`
	PDUs     uint32 `json:"pdus"`
}

// errorResponse is the JSON body written on any non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- BGP ---

type bgpSnapshot struct {
	ID           uint64     `json:"id"`
	LocalAddress netip.Addr `json:"local_address"`
	PeerAddress  netip.Addr `json:"peer_address"`
	LocalAS      uint32     `json:"local_as"`
	PeerAS       uint32     `json:"peer_as"`
	State        string     `json:"state"`
	ErrorCode    uint8      `json:"error_code,omitempty"`
	ErrorSubcode uint8      `json:"error_subcode,omitempty"`
}

func (s *Server) handleBGPSessions(w http.ResponseWriter, r *http.Request) {
	if s.bgp == nil {
		writeError(w, http.StatusServiceUnavailable, errEngineNotConfigured)
		return
	}
	snaps := s.bgp.Sessions()
	out := make([]bgpSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, bgpSnapshot{
			ID:           snap.ID,
			LocalAddress: snap.LocalAddress,
			PeerAddress:  snap.PeerAddress,
			LocalAS:      snap.LocalAS,
			PeerAS:       snap.PeerAS,
			State:        snap.State.String(),
			ErrorCode:    snap.ErrorCode,
			ErrorSubcode: snap.ErrorSubcode,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBGPTeardown(w http.ResponseWriter, r *http.Request) {
	if s.bgp == nil {
		writeError(w, http.StatusServiceUnavailable, errEngineNotConfigured)
		return
	}
	var req idRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.bgp.Teardown(req.ID); err != nil {
		writeError(w, mapManagerError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBGPTeardownAll(w http.ResponseWriter, r *http.Request) {
	if s.bgp == nil {
		writeError(w, http.StatusServiceUnavailable, errEngineNotConfigured)
		return
	}
	s.bgp.TeardownAll()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBGPDisconnect(w http.ResponseWriter, r *http.Request) {
	if s.bgp == nil {
		writeError(w, http.StatusServiceUnavailable, errEngineNotConfigured)
		return
	}
	var req idRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.bgp.Disconnect(req.ID); err != nil {
		writeError(w, mapManagerError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBGPRawUpdate(w http.ResponseWriter, r *http.Request) {
	if s.bgp == nil {
		writeError(w, http.StatusServiceUnavailable, errEngineNotConfigured)
		return
	}
	var req rawUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess, ok := s.bgp.LookupByID(req.ID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("raw update: %w", bgp.ErrUnknownSession))
		return
	}
	desc, err := rawupdate.LoadFile(req.File, req.Messages, req.PDUs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess.AttachRawUpdates(rawupdate.NewChain(desc))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBGPRawUpdateList(w http.ResponseWriter, r *http.Request) {
	if s.bgp == nil {
		writeError(w, http.StatusServiceUnavailable, errEngineNotConfigured)
		return
	}
	var req rawUpdateListRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.bgp.AttachRawUpdateAll(req.File, req.Messages, req.PDUs); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- LDP ---

type ldpSnapshot struct {
	ID           uint64     `json:"id"`
	LocalAddress netip.Addr `json:"local_address"`
	PeerAddress  netip.Addr `json:"peer_address"`
	Active       bool       `json:"active"`
	State        string     `json:"state"`
}

func (s *Server) handleLDPSessions(w http.ResponseWriter, r *http.Request) {
	if s.ldp == nil {
		writeError(w, http.StatusServiceUnavailable, errEngineNotConfigured)
		return
	}
	snaps := s.ldp.Sessions()
	out := make([]ldpSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, ldpSnapshot{
			ID:           snap.ID,
			LocalAddress: snap.LocalAddress,
			PeerAddress:  snap.PeerAddress,
			Active:       snap.Active,
			State:        snap.State.String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLDPTeardown(w http.ResponseWriter, r *http.Request) {
	if s.ldp == nil {
		writeError(w, http.StatusServiceUnavailable, errEngineNotConfigured)
		return
	}
	var req idRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ldp.Teardown(req.ID); err != nil {
		writeError(w, mapManagerError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLDPTeardownAll(w http.ResponseWriter, r *http.Request) {
	if s.ldp == nil {
		writeError(w, http.StatusServiceUnavailable, errEngineNotConfigured)
		return
	}
	s.ldp.TeardownAll()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLDPDisconnect(w http.ResponseWriter, r *http.Request) {
	if s.ldp == nil {
		writeError(w, http.StatusServiceUnavailable, errEngineNotConfigured)
		return
	}
	var req idRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ldp.Disconnect(req.ID); err != nil {
		writeError(w, mapManagerError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLDPRawUpdate(w http.ResponseWriter, r *http.Request) {
	if s.ldp == nil {
		writeError(w, http.StatusServiceUnavailable, errEngineNotConfigured)
		return
	}
	var req rawUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess, ok := s.ldp.LookupByID(req.ID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("raw update: %w", ldp.ErrUnknownSession))
		return
	}
	desc, err := rawupdate.LoadFile(req.File, req.Messages, req.PDUs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess.AttachRawUpdates(rawupdate.NewChain(desc))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLDPRawUpdateList(w http.ResponseWriter, r *http.Request) {
	if s.ldp == nil {
		writeError(w, http.StatusServiceUnavailable, errEngineNotConfigured)
		return
	}
	var req rawUpdateListRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ldp.AttachRawUpdateAll(req.File, req.Messages, req.PDUs); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- IS-IS ---

type isisSnapshot struct {
	Interface    string `json:"interface"`
	Level        string `json:"level"`
	P2P          bool   `json:"p2p"`
	State        string `json:"state"`
	PseudoNodeID uint32 `json:"pseudo_node_id,omitempty"`
	AdjacencySID uint32 `json:"adjacency_sid,omitempty"`
}

func (s *Server) handleISISAdjacencies(w http.ResponseWriter, r *http.Request) {
	if s.isis == nil {
		writeError(w, http.StatusServiceUnavailable, errEngineNotConfigured)
		return
	}
	snaps := s.isis.Snapshots()
	out := make([]isisSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, isisSnapshot{
			Interface:    snap.Interface,
			Level:        snap.Level.String(),
			P2P:          snap.P2P,
			State:        snap.State.String(),
			PseudoNodeID: snap.PseudoNodeID,
			AdjacencySID: snap.AdjacencySID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleISISUp(w http.ResponseWriter, r *http.Request) {
	if s.isis == nil {
		writeError(w, http.StatusServiceUnavailable, errEngineNotConfigured)
		return
	}
	var req ifaceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.isis.Up(req.Interface); err != nil {
		writeError(w, mapManagerError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleISISDown(w http.ResponseWriter, r *http.Request) {
	if s.isis == nil {
		writeError(w, http.StatusServiceUnavailable, errEngineNotConfigured)
		return
	}
	var req ifaceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.isis.Down(req.Interface, req.Reason); err != nil {
		writeError(w, mapManagerError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// errEngineNotConfigured is returned when a request names an engine this
// daemon instance has no Manager for.
var errEngineNotConfigured = errors.New("control: engine not configured")

// mapManagerError maps a Manager sentinel error to an HTTP status code,
// the JSON-dispatcher analogue of the teacher's mapManagerError
// (internal/server/server.go) which maps the same shape of errors to
// ConnectRPC codes.
func mapManagerError(err error) int {
	switch {
	case errors.Is(err, bgp.ErrDuplicateSession),
		errors.Is(err, ldp.ErrDuplicateSession):
		return http.StatusConflict
	case errors.Is(err, bgp.ErrUnknownSession),
		errors.Is(err, ldp.ErrUnknownSession),
		errors.Is(err, isis.ErrUnknownInterface):
		return http.StatusNotFound
	case errors.Is(err, bgp.ErrInvalidPeerAddr),
		errors.Is(err, ldp.ErrInvalidPeerAddr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
