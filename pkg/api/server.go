// Package api exposes a Ledger for read-only querying over HTTPS.
package api

import (
	"crypto/tls"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/homeledger/pkg/errs"
	"github.com/cuemby/homeledger/pkg/ledgerdb"
	"github.com/cuemby/homeledger/pkg/log"
	"github.com/cuemby/homeledger/pkg/metrics"
	"github.com/cuemby/homeledger/pkg/types"
)

var errMissingDateParam = errs.New(errs.InvalidInput, "missing or invalid \"date\" query parameter")

// Server exposes a Ledger over HTTP. The store is single-writer, so every
// request is serialized behind one mutex rather than relying on Ledger's
// internals to be safe for concurrent callers.
type Server struct {
	mu     sync.Mutex
	ledger *ledgerdb.Ledger
	mux    *http.ServeMux
}

// New wires up the query endpoints against ledger.
func New(ledger *ledgerdb.Ledger) *Server {
	s := &Server{ledger: ledger, mux: http.NewServeMux()}
	s.mux.HandleFunc("/healthz", s.instrument("/healthz", s.handleHealthz))
	s.mux.HandleFunc("/totals", s.instrument("/totals", s.handleTotals))
	s.mux.HandleFunc("/ops", s.instrument("/ops", s.handleOps))
	s.mux.Handle("/metrics", metrics.Handler())
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServeTLS starts the server on addr, generating a self-signed
// leaf certificate for the RSA key at keyPath and holding it in memory
// for the lifetime of the process.
func (s *Server) ListenAndServeTLS(addr, keyPath string) error {
	cert, err := selfSignedCertificate(keyPath)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      s,
		TLSConfig:    &tls.Config{Certificates: []tls.Certificate{cert}},
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Logger.Info().Str("addr", addr).Msg("starting API server")
	return server.ListenAndServeTLS("", "")
}

// instrument wraps h with request-id logging and the API request metrics
// every endpoint reports.
func (s *Server) instrument(path string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		logger := log.Logger.With().Str("request_id", requestID).Str("path", path).Logger()

		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		timer.ObserveDurationVec(metrics.APIRequestDuration, path)
		metrics.APIRequestsTotal.WithLabelValues(path, strconv.Itoa(rec.status)).Inc()

		logger.Info().Int("status", rec.status).Dur("elapsed", timer.Duration()).Msg("request handled")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type accountBalance struct {
	Start       int64 `json:"start"`
	Income      int64 `json:"income"`
	Expenditure int64 `json:"expenditure"`
	End         int64 `json:"end"`
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	_, changes, err := s.ledger.OpsAndChanges(date)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make(map[string]accountBalance, len(changes.All()))
	for account, c := range changes.All() {
		out[strconv.FormatUint(uint64(account), 10)] = accountBalance{
			Start:       c.StartBalance,
			Income:      c.Income,
			Expenditure: c.Expenditure,
			End:         c.EndBalance(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOps(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	ops, _, err := s.ledger.OpsAndChanges(date)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if ops == nil {
		ops = []types.Operation{}
	}
	writeJSON(w, http.StatusOK, ops)
}

func parseDateParam(r *http.Request) (types.KeyDate, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return 0, errMissingDateParam
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errMissingDateParam
	}
	return types.KeyDate(v), nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
