package restserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/freqsweep/freqsweep/internal/sweep"
	"github.com/freqsweep/freqsweep/internal/wire"
	"github.com/freqsweep/freqsweep/pkg/responseformat"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// sweepStartRequest carries optional overrides of the configured sweep
// parameters. Absent fields keep the configured value.
type sweepStartRequest struct {
	Start      *uint16 `json:"start,omitempty"`
	End        *uint16 `json:"end,omitempty"`
	Step       *uint16 `json:"step,omitempty"`
	IntervalMs *int    `json:"interval_ms,omitempty"`
	Strict     *bool   `json:"strict_validation,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, status int, err error) {
	h.formatter.WriteResponseStatus(w, req, status, errorResponse{Error: err.Error()}, nil)
}

// handleDevices lists the configured devices.
func (h *Handlers) handleDevices(w http.ResponseWriter, req *http.Request) {
	type deviceInfo struct {
		Name    string `json:"name"`
		Default bool   `json:"default"`
		State   string `json:"state"`
	}

	names := make([]string, 0, len(h.controller.devices))
	for name := range h.controller.devices {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []deviceInfo
	for _, name := range names {
		out = append(out, deviceInfo{
			Name:    name,
			Default: name == h.controller.defaultDevice,
			State:   h.controller.devices[name].Controller.State().String(),
		})
	}
	h.formatter.WriteResponse(w, req, out, nil)
}

// handleSweepStart starts a sweep using the configured parameters, with any
// overrides from the request body applied.
func (h *Handlers) handleSweepStart(w http.ResponseWriter, req *http.Request) {
	handle, err := h.controller.device(req)
	if err != nil {
		h.writeError(w, req, http.StatusNotFound, err)
		return
	}

	cfg := handle.DefaultConfig
	if req.Body != nil && req.ContentLength != 0 {
		var overrides sweepStartRequest
		if err := json.NewDecoder(req.Body).Decode(&overrides); err != nil {
			h.writeError(w, req, http.StatusBadRequest, err)
			return
		}
		if overrides.Start != nil {
			cfg.Start = *overrides.Start
		}
		if overrides.End != nil {
			cfg.End = *overrides.End
		}
		if overrides.Step != nil {
			cfg.Step = *overrides.Step
		}
		if overrides.IntervalMs != nil {
			cfg.Interval = time.Duration(*overrides.IntervalMs) * time.Millisecond
		}
		if overrides.Strict != nil {
			cfg.Strict = *overrides.Strict
		}
	}

	if err := handle.Controller.Start(cfg); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, sweep.ErrSweepRunning) {
			status = http.StatusConflict
		}
		h.writeError(w, req, status, err)
		return
	}

	h.formatter.WriteResponse(w, req, statusResponse{Status: "started", State: handle.Controller.State().String()}, nil)
}

// handleSweepStop stops a running sweep. Stopping an idle device is not an
// error; collected chart points remain readable either way.
func (h *Handlers) handleSweepStop(w http.ResponseWriter, req *http.Request) {
	handle, err := h.controller.device(req)
	if err != nil {
		h.writeError(w, req, http.StatusNotFound, err)
		return
	}

	handle.Controller.Stop()
	h.formatter.WriteResponse(w, req, statusResponse{Status: "stopped", State: handle.Controller.State().String()}, nil)
}

// handleSendOnce transmits one raw command outside a sweep. The body carries
// hex text, which may use any separators ParseHex accepts.
func (h *Handlers) handleSendOnce(w http.ResponseWriter, req *http.Request) {
	handle, err := h.controller.device(req)
	if err != nil {
		h.writeError(w, req, http.StatusNotFound, err)
		return
	}

	var body struct {
		Data string `json:"data"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		h.writeError(w, req, http.StatusBadRequest, err)
		return
	}

	cmd, err := wire.ParseHex(body.Data)
	if err != nil {
		// Malformed hex is a local, recoverable error: nothing is sent.
		h.writeError(w, req, http.StatusBadRequest, err)
		return
	}
	if len(cmd) == 0 {
		h.writeError(w, req, http.StatusBadRequest, errors.New("empty command"))
		return
	}

	if err := handle.Controller.SendOnce(cmd); err != nil {
		h.writeError(w, req, http.StatusBadGateway, err)
		return
	}

	h.formatter.WriteResponse(w, req, statusResponse{Status: "sent", State: handle.Controller.State().String()}, nil)
}

// handleChart returns the chart points of the device's current session.
func (h *Handlers) handleChart(w http.ResponseWriter, req *http.Request) {
	handle, err := h.controller.device(req)
	if err != nil {
		h.writeError(w, req, http.StatusNotFound, err)
		return
	}
	h.formatter.WriteResponse(w, req, handle.Controller.Chart(), nil)
}

// handleStats returns transmit/receive counters and the controller state.
func (h *Handlers) handleStats(w http.ResponseWriter, req *http.Request) {
	handle, err := h.controller.device(req)
	if err != nil {
		h.writeError(w, req, http.StatusNotFound, err)
		return
	}

	stats := handle.Controller.Stats()
	resp := struct {
		State     string  `json:"state"`
		Tx        uint64  `json:"tx"`
		RxValid   uint64  `json:"rx_valid"`
		RxInvalid uint64  `json:"rx_invalid"`
		ElapsedMs float64 `json:"elapsed_ms"`
	}{
		State:     handle.Controller.State().String(),
		Tx:        stats.Tx,
		RxValid:   stats.RxValid,
		RxInvalid: stats.RxInvalid,
		ElapsedMs: float64(stats.Elapsed.Milliseconds()),
	}
	h.formatter.WriteResponse(w, req, resp, nil)
}

// handleLog returns the retained event log.
func (h *Handlers) handleLog(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, h.controller.recorder.Log(), nil)
}

// handleLive returns the most recent live value.
func (h *Handlers) handleLive(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, h.controller.recorder.Live(), nil)
}

// handleSummary returns the completed sweep's summary statistics.
func (h *Handlers) handleSummary(w http.ResponseWriter, req *http.Request) {
	handle, err := h.controller.device(req)
	if err != nil {
		h.writeError(w, req, http.StatusNotFound, err)
		return
	}

	summary, ok := handle.Controller.Summary()
	if !ok {
		h.writeError(w, req, http.StatusNotFound, errors.New("no completed sweep"))
		return
	}
	h.formatter.WriteResponse(w, req, summary, nil)
}
