// Package checkin runs the desk workflow: a scanned code is looked up, the
// application is kept as the current one, a ticket is printed and the
// operator marks attendance.
package checkin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nixxel-company-limited/escpos-checkin/api"
	"github.com/nixxel-company-limited/escpos-checkin/application"
	"github.com/nixxel-company-limited/escpos-checkin/ticket"
)

// Workflow errors
var (
	ErrBusy          = errors.New("another request is in progress")
	ErrEmptyCode     = errors.New("empty code")
	ErrNoApplication = errors.New("no application loaded")
)

// Backend is the remote API used by the station
type Backend interface {
	FetchApplication(ctx context.Context, code string) (*application.Record, error)
	UpdateAttendance(ctx context.Context, applicationID, scheduleID string, present bool) error
	UploadPassport(ctx context.Context, userID, filename string, photo io.Reader) error
}

// Printer is the ticket printer; IsConnected gates automatic printing
type Printer interface {
	ticket.Printer
	IsConnected() bool
}

// ScanResult is the outcome of one scan
type ScanResult struct {
	Record  *application.Record
	Printed bool
	// PrintErr is set when the automatic ticket failed. The scan itself
	// still succeeded.
	PrintErr error
}

// Station holds the current application and serializes desk actions
type Station struct {
	backend   Backend
	printer   Printer
	ticket    ticket.Options
	autoPrint bool
	logger    *zap.Logger

	scanning atomic.Bool
	marking  atomic.Bool

	mu      sync.RWMutex
	current *application.Record
	code    string
}

// Option configures a Station
type Option func(*Station)

// WithAutoPrint prints a ticket after every successful scan while a
// printer is connected
func WithAutoPrint(on bool) Option {
	return func(s *Station) { s.autoPrint = on }
}

// WithTicketOptions sets the ticket layout
func WithTicketOptions(opts ticket.Options) Option {
	return func(s *Station) { s.ticket = opts }
}

// WithLogger sets the station logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Station) { s.logger = logger }
}

// NewStation creates a station. printer may be nil when no printer is used.
func NewStation(backend Backend, printer Printer, opts ...Option) *Station {
	s := &Station{
		backend: backend,
		printer: printer,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Current returns the last scanned application, or nil
func (s *Station) Current() *application.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Station) setCurrent(rec *application.Record) {
	s.mu.Lock()
	s.current = rec
	s.mu.Unlock()
}

// HandleScan fetches the application for code and makes it current. A scan
// arriving while another is being handled is dropped with ErrBusy.
func (s *Station) HandleScan(ctx context.Context, code string) (*ScanResult, error) {
	if !s.scanning.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.scanning.Store(false)

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyCode
	}
	s.logger.Info("Code scanned", zap.String("code", code))

	rec, err := s.backend.FetchApplication(ctx, code)
	if err != nil {
		s.logger.Warn("Lookup failed", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("lookup %q: %w", code, err)
	}
	s.mu.Lock()
	s.current, s.code = rec, code
	s.mu.Unlock()

	result := &ScanResult{Record: rec}
	if s.autoPrint && s.printer != nil && s.printer.IsConnected() {
		if err := ticket.Print(ctx, s.printer, rec, s.ticket); err != nil {
			s.logger.Error("Ticket print failed", zap.String("code", code), zap.Error(err))
			result.PrintErr = err
		} else {
			result.Printed = true
		}
	}
	return result, nil
}

// PrintCurrent prints the ticket of the current application
func (s *Station) PrintCurrent(ctx context.Context) error {
	rec := s.Current()
	if rec == nil {
		return ErrNoApplication
	}
	if s.printer == nil {
		return errors.New("no printer configured")
	}
	return ticket.Print(ctx, s.printer, rec, s.ticket)
}

// MarkAttendance records the applicant present or absent. The current record
// is updated before the request and restored when the request fails. After a
// successful update the application is fetched again so server-side changes
// show up.
func (s *Station) MarkAttendance(ctx context.Context, present bool) (application.Attendance, error) {
	if !s.marking.CompareAndSwap(false, true) {
		return application.Unmarked, ErrBusy
	}
	defer s.marking.Store(false)

	s.mu.RLock()
	prev, code := s.current, s.code
	s.mu.RUnlock()
	if prev == nil {
		return application.Unmarked, ErrNoApplication
	}
	appID, scheduleID, err := api.ScheduleFor(prev)
	if err != nil {
		return prev.Attendance(), err
	}

	mark := application.Absent
	if present {
		mark = application.Present
	}
	next := prev.WithAttendance(mark)
	s.setCurrent(next)

	if err := s.backend.UpdateAttendance(ctx, appID, scheduleID, present); err != nil {
		s.mu.Lock()
		// A newer scan replaces the record; leave it alone
		if s.current == next {
			s.current = prev
		}
		s.mu.Unlock()
		s.logger.Warn("Attendance update failed",
			zap.String("application", appID),
			zap.String("schedule", scheduleID),
			zap.Error(err))
		return prev.Attendance(), fmt.Errorf("update attendance: %w", err)
	}

	s.logger.Info("Attendance updated",
		zap.String("application", appID),
		zap.String("schedule", scheduleID),
		zap.Stringer("attendance", mark))

	s.refresh(ctx, code, next)
	return mark, nil
}

// refresh replaces expected with a freshly fetched record. A failed fetch
// keeps expected.
func (s *Station) refresh(ctx context.Context, code string, expected *application.Record) {
	if code == "" {
		return
	}
	rec, err := s.backend.FetchApplication(ctx, code)
	if err != nil {
		s.logger.Warn("Refresh failed", zap.String("code", code), zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == expected {
		s.current = rec
	}
}

// UploadPassport sends a passport photo for the current applicant
func (s *Station) UploadPassport(ctx context.Context, filename string, photo io.Reader) error {
	rec := s.Current()
	if rec == nil {
		return ErrNoApplication
	}
	userID, ok := rec.UserID()
	if !ok {
		return errors.New("application has no candidate")
	}
	if err := s.backend.UploadPassport(ctx, userID.String(), filename, photo); err != nil {
		return fmt.Errorf("upload passport: %w", err)
	}
	s.logger.Info("Passport uploaded", zap.String("user", userID.String()))
	return nil
}

// Run handles one scanned code per line from r (a keyboard-wedge scanner on
// stdin) until r is exhausted or ctx is done
func (s *Station) Run(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return nil
				}
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if _, err := s.HandleScan(ctx, line); err != nil {
				s.logger.Warn("Scan not handled", zap.Error(err))
			}
		}
	}
}
