// Package httpapi is the operator interface of the check-in station: printer
// control, scans, attendance and passport upload over HTTP, and printer
// connection events over a websocket.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nixxel-company-limited/escpos-checkin/application"
	"github.com/nixxel-company-limited/escpos-checkin/checkin"
	"github.com/nixxel-company-limited/escpos-checkin/printer"
	"github.com/nixxel-company-limited/escpos-checkin/ticket"
)

const maxUploadSize = 10 << 20

// Printer is the printer manager as seen by the HTTP layer
type Printer interface {
	ticket.Printer
	State() printer.State
	ListPairedDevices(ctx context.Context) ([]printer.Device, error)
	Connect(ctx context.Context, device *printer.Device) (printer.Device, error)
	Disconnect(ctx context.Context) error
	Subscribe(fn printer.Listener) (unsubscribe func())
}

// Server serves the operator API
type Server struct {
	printer  Printer
	station  *checkin.Station
	logger   *zap.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New creates the API server
func New(p Printer, station *checkin.Station, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		printer: p,
		station: station,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The station is operated from the local network
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now:  time.Now,
		done: make(chan struct{}),
	}
}

// Router returns the route table
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}).Methods("GET")

	r.HandleFunc("/printer", s.handlePrinterState).Methods("GET")
	r.HandleFunc("/printer/devices", s.handleDevices).Methods("GET")
	r.HandleFunc("/printer/connect", s.handleConnect).Methods("POST")
	r.HandleFunc("/printer/disconnect", s.handleDisconnect).Methods("POST")
	r.HandleFunc("/printer/test", s.handleTestReceipt).Methods("POST")
	r.HandleFunc("/printer/events", s.handleEvents).Methods("GET")

	r.HandleFunc("/scan", s.handleScan).Methods("POST")
	r.HandleFunc("/applications/current", s.handleCurrent).Methods("GET")
	r.HandleFunc("/applications/current/print", s.handlePrint).Methods("POST")
	r.HandleFunc("/applications/current/attendance", s.handleAttendance).Methods("POST")
	r.HandleFunc("/applications/current/passport", s.handlePassport).Methods("POST")

	return r
}

// Close ends open event streams
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("Request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

type stateResponse struct {
	Connected bool            `json:"connected"`
	Device    *printer.Device `json:"device"`
}

func newStateResponse(st printer.State) stateResponse {
	resp := stateResponse{Connected: st.IsConnected()}
	if d, ok := st.Device(); ok {
		resp.Device = &d
	}
	return resp
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) handlePrinterState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStateResponse(s.printer.State()))
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.printer.ListPairedDevices(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var target *printer.Device
	var d printer.Device
	switch err := json.NewDecoder(r.Body).Decode(&d); {
	case errors.Is(err, io.EOF):
	case err != nil:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	case d.Address != "":
		target = &d
	}

	device, err := s.printer.Connect(r.Context(), target)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Connected: true, Device: &device})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.printer.Disconnect(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(s.printer.State()))
}

func (s *Server) handleTestReceipt(w http.ResponseWriter, r *http.Request) {
	if err := ticket.TestReceipt(r.Context(), s.printer, s.now()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

type scanRequest struct {
	Code string `json:"code"`
}

type applicationResponse struct {
	Record     *application.Record   `json:"record"`
	Sections   []application.Section `json:"sections"`
	Attendance string                `json:"attendance"`
	Printed    bool                  `json:"printed,omitempty"`
	PrintError string                `json:"print_error,omitempty"`
}

func newApplicationResponse(rec *application.Record) applicationResponse {
	return applicationResponse{
		Record:     rec,
		Sections:   application.Sections(rec),
		Attendance: rec.Attendance().String(),
	}
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := s.station.HandleScan(r.Context(), req.Code)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := newApplicationResponse(result.Record)
	resp.Printed = result.Printed
	if result.PrintErr != nil {
		resp.PrintError = result.PrintErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	rec := s.station.Current()
	if rec == nil {
		s.writeError(w, checkin.ErrNoApplication)
		return
	}
	writeJSON(w, http.StatusOK, newApplicationResponse(rec))
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	if err := s.station.PrintCurrent(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "printed"})
}

type attendanceRequest struct {
	Present *bool `json:"present"`
}

func (s *Server) handleAttendance(w http.ResponseWriter, r *http.Request) {
	var req attendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Present == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: `body must be {"present": true|false}`})
		return
	}

	mark, err := s.station.MarkAttendance(r.Context(), *req.Present)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"attendance": mark.String()})
}

func (s *Server) handlePassport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart form"})
		return
	}
	file, hdr, err := r.FormFile("passport_copy")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "passport_copy is required"})
		return
	}
	defer file.Close()

	if err := s.station.UploadPassport(r.Context(), hdr.Filename, file); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "uploaded"})
}
