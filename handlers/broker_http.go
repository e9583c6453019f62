package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/dcbradley/netblast/appctx"
	"github.com/dcbradley/netblast/core"
	"github.com/dcbradley/netblast/metrics"
	"github.com/dcbradley/netblast/models"
	"github.com/dcbradley/netblast/models/api"
	"github.com/dcbradley/netblast/usecases/broker"
)

// Operation selectors accepted in the r parameter
const (
	OpRegister      = "register"
	OpGetWork       = "get_work"
	OpGetWorkLegacy = "getwork"
	OpKeepAlive     = "keep_alive"
	OpReportFlow    = "report_flow"
	OpClose         = "close"
)

type BrokerHTTPHandler struct {
	broker broker.BrokerUseCaseInterface
}

func NewBrokerHTTPHandler(brokerUseCase broker.BrokerUseCaseInterface) *BrokerHTTPHandler {
	return &BrokerHTTPHandler{broker: brokerUseCase}
}

func (h *BrokerHTTPHandler) SetupEndpoints(router *mux.Router) {
	log.Printf("🚀 Registering broker endpoints")

	for _, path := range []string{"/", "/index.php"} {
		router.HandleFunc(path, h.HandleDispatch).Methods("GET", "POST")
		log.Printf("✅ GET/POST %s endpoint registered", path)
	}
}

// HandleDispatch routes a request on its r selector. Fields come from the query string
// or a form body. Unknown selectors get a bare 400.
func (h *BrokerHTTPHandler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	op := strings.TrimSpace(r.FormValue("r"))
	started := time.Now()

	var outcome string
	switch op {
	case OpRegister:
		outcome = h.handleRegister(w, r)
	case OpGetWork, OpGetWorkLegacy:
		op = OpGetWork
		outcome = h.handleGetWork(w, r)
	case OpKeepAlive:
		outcome = h.handleKeepAlive(w, r)
	case OpReportFlow:
		outcome = h.handleReportFlow(w, r)
	case OpClose:
		outcome = h.handleClose(w, r)
	default:
		log.Printf("❌ Unknown operation %q from %s", op, r.RemoteAddr)
		metrics.Requests.WithLabelValues("unknown", "bad_request").Inc()
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	metrics.Requests.WithLabelValues(op, outcome).Inc()
	metrics.RequestLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func (h *BrokerHTTPHandler) handleRegister(w http.ResponseWriter, r *http.Request) string {
	log.Printf("📝 Worker registration request received from %s", r.RemoteAddr)

	registration := models.Registration{
		Hostname: r.FormValue("hostname"),
		IP4:      optionalField(r, "ip4"),
		IP6:      optionalField(r, "ip6"),
	}
	if remoteAddr, ok := appctx.GetRemoteAddr(r.Context()); ok {
		registration.RemoteAddr = remoteAddr
	} else {
		registration.RemoteAddr = r.RemoteAddr
	}
	if raw := optionalField(r, "server_port"); raw != nil {
		port, err := strconv.Atoi(*raw)
		if err != nil {
			return h.writeError(w, core.NewValidationError("server_port", "must be an integer"))
		}
		registration.ServerPort = &port
	}

	result, err := h.broker.Register(r.Context(), registration)
	if err != nil {
		return h.writeError(w, err)
	}

	h.writeJSONResponse(w, http.StatusOK, api.DomainRegistrationToAPIRegisterResponse(result))
	return "ok"
}

func (h *BrokerHTTPHandler) handleGetWork(w http.ResponseWriter, r *http.Request) string {
	workerID, credential, err := credentialsFromRequest(r)
	if err != nil {
		return h.writeError(w, err)
	}

	mode, ok := models.ParseMode(r.FormValue("mode"))
	if !ok {
		log.Printf("❌ Unsupported mode %q from worker %s", mode, workerID)
		h.writeJSONResponse(w, http.StatusBadRequest, api.StatusResponse{Error: api.ErrMsgUnsupportedMode})
		return "bad_request"
	}

	assignment, err := h.broker.GetWork(r.Context(), workerID, credential, mode)
	if err != nil {
		return h.writeError(w, err)
	}

	response := api.DomainAssignmentToAPIWorkResponse(assignment)
	if response == nil {
		// client mode with every server busy: 200 with no body
		w.WriteHeader(http.StatusOK)
		return "no_server"
	}

	h.writeJSONResponse(w, http.StatusOK, response)
	return "ok"
}

func (h *BrokerHTTPHandler) handleKeepAlive(w http.ResponseWriter, r *http.Request) string {
	workerID, credential, err := credentialsFromRequest(r)
	if err != nil {
		return h.writeError(w, err)
	}

	if err := h.broker.KeepAlive(r.Context(), workerID, credential); err != nil {
		return h.writeError(w, err)
	}

	h.writeJSONResponse(w, http.StatusOK, api.StatusResponse{Success: true})
	return "ok"
}

func (h *BrokerHTTPHandler) handleReportFlow(w http.ResponseWriter, r *http.Request) string {
	workerID, credential, err := credentialsFromRequest(r)
	if err != nil {
		return h.writeError(w, err)
	}

	report, err := flowReportFromRequest(r)
	if err != nil {
		return h.writeError(w, err)
	}

	flow, err := h.broker.ReportFlow(r.Context(), workerID, credential, report)
	if err != nil {
		return h.writeError(w, err)
	}

	h.writeJSONResponse(w, http.StatusOK, api.FlowResponse{Success: true, FlowID: flow.ID})
	return "ok"
}

func (h *BrokerHTTPHandler) handleClose(w http.ResponseWriter, r *http.Request) string {
	workerID, credential, err := credentialsFromRequest(r)
	if err != nil {
		return h.writeError(w, err)
	}

	if err := h.broker.Close(r.Context(), workerID, credential); err != nil {
		return h.writeError(w, err)
	}

	h.writeJSONResponse(w, http.StatusOK, api.StatusResponse{Success: true})
	return "ok"
}

// writeError maps a failure onto its reply and returns the metrics outcome label
func (h *BrokerHTTPHandler) writeError(w http.ResponseWriter, err error) string {
	var validationErr *core.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.writeJSONResponse(w, http.StatusBadRequest, api.StatusResponse{Error: validationErr.Error()})
		return "bad_request"
	case core.IsNotFoundError(err):
		h.writeJSONResponse(w, http.StatusOK, api.StatusResponse{Error: api.ErrMsgWorkerNotFound})
		return "not_found"
	case errors.Is(err, core.ErrNoOpenConnection):
		h.writeJSONResponse(w, http.StatusOK, api.StatusResponse{Error: api.ErrMsgNoOpenConnection})
		return "no_connection"
	default:
		log.Printf("❌ Request failed: %v", err)
		h.writeJSONResponse(w, http.StatusInternalServerError, api.StatusResponse{Error: api.ErrMsgInternal})
		return "error"
	}
}

func (h *BrokerHTTPHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("❌ Failed to encode JSON response: %v", err)
	}
}

func credentialsFromRequest(r *http.Request) (string, string, error) {
	workerID := strings.TrimSpace(r.FormValue("worker_id"))
	if workerID == "" {
		return "", "", core.NewValidationError("worker_id", "is required")
	}
	credential := strings.TrimSpace(r.FormValue("cookie"))
	if credential == "" {
		return "", "", core.NewValidationError("cookie", "is required")
	}
	return workerID, credential, nil
}

// flowReportFromRequest reads start as unix seconds (fractions allowed), duration in seconds and bytes
func flowReportFromRequest(r *http.Request) (models.FlowReport, error) {
	start, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("start")), 64)
	if err != nil || math.IsNaN(start) || math.IsInf(start, 0) || start <= 0 {
		return models.FlowReport{}, core.NewValidationError("start", "must be a unix timestamp")
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("duration")), 64)
	if err != nil || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return models.FlowReport{}, core.NewValidationError("duration", "must be a number of seconds")
	}
	sent, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("bytes")), 10, 64)
	if err != nil {
		return models.FlowReport{}, core.NewValidationError("bytes", "must be an integer")
	}

	whole, frac := math.Modf(start)
	return models.FlowReport{
		StartedAt:       time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC(),
		DurationSeconds: duration,
		Bytes:           sent,
	}, nil
}

func optionalField(r *http.Request, key string) *string {
	value := strings.TrimSpace(r.FormValue(key))
	if value == "" {
		return nil
	}
	return &value
}
