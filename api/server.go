// Package api exposes the gateway over HTTP with JSON bodies.
//
// Mutating routes take the acting address from the X-IPC-Caller header; the
// server is meant to sit behind a proxy that authenticates it.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/consensus-shipyard/ipc-sub004/gateway"
	"github.com/consensus-shipyard/ipc-sub004/inter"
)

// CallerHeader carries the address on whose behalf a request acts.
const CallerHeader = "X-IPC-Caller"

const maxBodyBytes = 16 << 20

// Backend is the gateway surface the server needs.
type Backend interface {
	gateway.BottomUpRouter
	gateway.BottomUpGetter
	gateway.SubnetManager
}

var errMissingCaller = errors.New("missing " + CallerHeader + " header")

type server struct {
	backend  Backend
	log      logrus.FieldLogger
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRouter returns the HTTP handler of the gateway. Metrics registered with
// gatherer are served on /metrics; request metrics are registered with reg
// when it is not nil.
func NewRouter(backend Backend, log logrus.FieldLogger, reg prometheus.Registerer, gatherer prometheus.Gatherer) http.Handler {
	s := &server{
		backend: backend,
		log:     log.WithField("module", "api"),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ipc",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "HTTP requests served, by route and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ipc",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	if reg != nil {
		reg.MustRegister(s.requests, s.duration)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/batch", s.getBatch)
		r.Post("/batches", s.createBatch)
		r.Post("/signatures", s.addSignature)
		r.Post("/executions", s.execBatch)
		r.Post("/retention", s.prune)

		r.Get("/subnet", s.getSubnet)
		r.Get("/nonce", s.getNonce)
		r.Get("/membership", s.getMembership)
		r.Post("/subnets", s.registerSubnet)
		r.Post("/subnets/fund", s.fundSubnet)
		r.Post("/subnets/kill", s.killSubnet)
	})
	return r
}

func (s *server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		s.duration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		s.log.WithFields(logrus.Fields{
			"method":  r.Method,
			"route":   route,
			"status":  status,
			"elapsed": time.Since(start),
			"reqid":   middleware.GetReqID(r.Context()),
		}).Debug("HTTP request served")
	})
}

func (s *server) getBatch(w http.ResponseWriter, r *http.Request) {
	subnet, err := subnetParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	height, err := heightParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, ok, err := s.backend.BottomUpMsgBatch(r.Context(), subnet, height)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("no batch at %s height %d", subnet, height)})
		return
	}
	writeJSON(w, http.StatusOK, NewBatchRecord(rec))
}

func (s *server) createBatch(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req CreateBatchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	batch, err := req.Batch.ToBatch()
	if err != nil {
		writeError(w, badRequest(err))
		return
	}
	rec, err := s.backend.CreateBottomUpMsgBatch(r.Context(), caller, batch, req.MembershipRoot, toBig(req.MembershipWeight))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, NewBatchRecord(rec))
}

func (s *server) addSignature(w http.ResponseWriter, r *http.Request) {
	var req SignatureRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.backend.AddBottomUpMsgBatchSignature(r.Context(), req.Subnet, idx.Block(req.Height), req.Proof, toBig(req.Weight), req.Signature)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewBatchRecord(rec))
}

func (s *server) execBatch(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req ExecRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	batch, err := req.Batch.ToBatch()
	if err != nil {
		writeError(w, badRequest(err))
		return
	}
	rec, err := s.backend.ExecBottomUpMsgBatch(r.Context(), caller, batch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewBatchRecord(rec))
}

func (s *server) prune(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req RetentionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	pruned, err := s.backend.PruneBottomUpMsgBatches(r.Context(), caller, req.Subnet, idx.Block(req.Height))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RetentionResponse{Retention: req.Height, Pruned: heights(pruned)})
}

func (s *server) getSubnet(w http.ResponseWriter, r *http.Request) {
	id, err := subnetParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx := r.Context()
	rec, err := s.backend.Subnet(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := newSubnet(rec)
	if err := s.fillSubnet(ctx, id, &out); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) fillSubnet(ctx context.Context, id inter.SubnetID, out *Subnet) error {
	retention, err := s.backend.RetentionHeight(ctx, id)
	if err != nil {
		return err
	}
	out.RetentionHeight = hexutil.Uint64(retention)
	if last, ok, err := s.backend.LastExecutedHeight(ctx, id); err != nil {
		return err
	} else if ok {
		h := hexutil.Uint64(last)
		out.LastExecutedHeight = &h
	}
	incomplete, err := s.backend.IncompleteBatches(ctx, id)
	if err != nil {
		return err
	}
	out.Incomplete = heights(incomplete)
	pending, err := s.backend.PendingCertifiedBatches(ctx, id)
	if err != nil {
		return err
	}
	out.PendingCertified = heights(pending)
	return nil
}

func (s *server) getNonce(w http.ResponseWriter, r *http.Request) {
	id, err := subnetParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sender := r.URL.Query().Get("sender")
	if !common.IsHexAddress(sender) {
		writeError(w, badRequest(fmt.Errorf("bad sender address %q", sender)))
		return
	}
	nonce, err := s.backend.ExpectedNonce(r.Context(), id, common.HexToAddress(sender))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NonceResponse{Nonce: hexutil.Uint64(nonce)})
}

func (s *server) getMembership(w http.ResponseWriter, r *http.Request) {
	id, err := subnetParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	validator := r.URL.Query().Get("validator")
	if !common.IsHexAddress(validator) {
		writeError(w, badRequest(fmt.Errorf("bad validator address %q", validator)))
		return
	}
	p, err := s.backend.MembershipProof(r.Context(), id, common.HexToAddress(validator))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MembershipResponse{
		Root:        p.Root,
		TotalWeight: fromBig(p.TotalWeight),
		Weight:      fromBig(p.Weight),
		Proof:       p.Proof,
	})
}

func (s *server) registerSubnet(w http.ResponseWriter, r *http.Request) {
	s.manageSubnet(w, r, http.StatusCreated, func(ctx context.Context, caller common.Address, req SubnetRequest) error {
		return s.backend.RegisterSubnet(ctx, caller, req.ID, req.Origin, toBig(req.Amount))
	})
}

func (s *server) fundSubnet(w http.ResponseWriter, r *http.Request) {
	s.manageSubnet(w, r, http.StatusOK, func(ctx context.Context, caller common.Address, req SubnetRequest) error {
		return s.backend.FundSubnet(ctx, caller, req.ID, toBig(req.Amount))
	})
}

func (s *server) killSubnet(w http.ResponseWriter, r *http.Request) {
	s.manageSubnet(w, r, http.StatusOK, func(ctx context.Context, caller common.Address, req SubnetRequest) error {
		return s.backend.KillSubnet(ctx, caller, req.ID)
	})
}

func (s *server) manageSubnet(w http.ResponseWriter, r *http.Request, status int, op func(context.Context, common.Address, SubnetRequest) error) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req SubnetRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := op(r.Context(), caller, req); err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.backend.Subnet(r.Context(), req.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, newSubnet(rec))
}

// requestError is a malformed request, rejected before reaching the gateway.
type requestError struct{ err error }

func (e requestError) Error() string { return e.err.Error() }
func (e requestError) Unwrap() error { return e.err }

func badRequest(err error) error { return requestError{err} }

func callerOf(r *http.Request) (common.Address, error) {
	raw := r.Header.Get(CallerHeader)
	if raw == "" {
		return common.Address{}, badRequest(errMissingCaller)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, badRequest(fmt.Errorf("bad %s %q", CallerHeader, raw))
	}
	return common.HexToAddress(raw), nil
}

func subnetParam(r *http.Request) (inter.SubnetID, error) {
	id, err := inter.ParseSubnetID(r.URL.Query().Get("subnet"))
	if err != nil {
		return inter.SubnetID{}, badRequest(err)
	}
	return id, nil
}

func heightParam(r *http.Request) (idx.Block, error) {
	h, err := strconv.ParseUint(r.URL.Query().Get("height"), 10, 64)
	if err != nil {
		return 0, badRequest(fmt.Errorf("bad height: %v", err))
	}
	return idx.Block(h), nil
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest(fmt.Errorf("decode body: %v", err))
	}
	return nil
}

// StatusOf maps an error to the HTTP status it is reported with.
func StatusOf(err error) int {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest
	}
	switch gateway.KindOf(err) {
	case gateway.KindValidation:
		return http.StatusBadRequest
	case gateway.KindStateConflict:
		return http.StatusConflict
	case gateway.KindAuthorization:
		return http.StatusForbidden
	case gateway.KindConsensus, gateway.KindExecution:
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	if kind := gateway.KindOf(err); kind != gateway.KindUnknown {
		resp.Name = gateway.NameOf(err)
		resp.Kind = kind.String()
	}
	writeJSON(w, StatusOf(err), resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
