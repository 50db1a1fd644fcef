// Package ticket lays out the check-in ticket printed for a scanned
// application.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nixxel-company-limited/escpos-checkin/application"
	"github.com/nixxel-company-limited/escpos-checkin/escpos"
)

// DefaultWidth is the column count of a 58mm printer in font A
const DefaultWidth = 32

const (
	ellipsis      = "..."
	barcodeHeight = 80
	barcodeWidth  = 2
	feedLines     = 4
)

// ErrPartialPrint is matched by errors from a ticket that failed after
// some of its segments reached the printer
var ErrPartialPrint = errors.New("ticket partially printed")

// Printer is the subset of the printer manager a ticket needs
type Printer interface {
	InitPrinter(ctx context.Context) error
	PrintText(ctx context.Context, text string, opts escpos.TextOptions) error
}

// RawWriter is implemented by printers that accept pre-encoded commands.
// Barcodes and the paper cut are only sent to a RawWriter.
type RawWriter interface {
	WriteRaw(ctx context.Context, data []byte) (int, error)
}

// Options controls the ticket layout
type Options struct {
	Title    string
	Width    int
	Encoding string
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = "CHECK-IN TICKET"
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// PrintError reports how far a ticket got before the printer failed
type PrintError struct {
	Completed int
	Total     int
	Err       error
}

func (e *PrintError) Error() string {
	return fmt.Sprintf("%v (%d of %d segments sent): %v", ErrPartialPrint, e.Completed, e.Total, e.Err)
}

func (e *PrintError) Unwrap() error {
	return e.Err
}

func (e *PrintError) Is(target error) bool {
	return target == ErrPartialPrint
}

type segment struct {
	text string
	opts escpos.TextOptions
	raw  []byte
}

// Print sends the ticket for rec. A RawWriter receives the whole rendered
// ticket in one write, so no other job can land between its lines. Other
// printers get the text segments one by one, and the first failing segment
// aborts the rest. Either way a failure after init matches ErrPartialPrint.
func Print(ctx context.Context, p Printer, rec *application.Record, opts Options) error {
	if rec == nil {
		return errors.New("no application to print")
	}
	opts = opts.withDefaults()

	segments, err := layout(rec, opts)
	if err != nil {
		return err
	}

	rw, raw := p.(RawWriter)
	if !raw {
		if err := p.InitPrinter(ctx); err != nil {
			return fmt.Errorf("init printer: %w", err)
		}
		return send(ctx, p, textOnly(segments))
	}

	data, err := render(segments)
	if err != nil {
		return err
	}
	if err := p.InitPrinter(ctx); err != nil {
		return fmt.Errorf("init printer: %w", err)
	}
	if _, err := rw.WriteRaw(ctx, data); err != nil {
		return &PrintError{Completed: 0, Total: 1, Err: err}
	}
	return nil
}

// render encodes every segment, options included, into a single command
// stream
func render(segments []segment) ([]byte, error) {
	b := escpos.New()
	for _, s := range segments {
		if s.raw != nil {
			b.Raw(s.raw)
			continue
		}
		data, err := s.opts.Render(s.text)
		if err != nil {
			return nil, fmt.Errorf("render ticket: %w", err)
		}
		b.Raw(data)
	}
	return b.Bytes(), nil
}

func send(ctx context.Context, p Printer, segments []segment) error {
	for i, s := range segments {
		if err := p.PrintText(ctx, s.text, s.opts); err != nil {
			return &PrintError{Completed: i, Total: len(segments), Err: err}
		}
	}
	return nil
}

func textOnly(segments []segment) []segment {
	var out []segment
	for _, s := range segments {
		if s.raw == nil {
			out = append(out, s)
		}
	}
	return append(out, segment{text: strings.Repeat("\n", feedLines)})
}

func layout(rec *application.Record, opts Options) ([]segment, error) {
	border := strings.Repeat("=", opts.Width) + "\n"
	rule := strings.Repeat("-", opts.Width) + "\n"

	header := escpos.TextOptions{
		Encoding:    opts.Encoding,
		WidthTimes:  2,
		HeightTimes: 2,
		Bold:        true,
		Align:       escpos.AlignCenter,
	}
	// Double width halves the usable columns
	title := Truncate(opts.Title, opts.Width/2)

	var body strings.Builder
	body.WriteString(border)
	for _, f := range Fields(rec) {
		body.WriteString(Line(f.Label, f.Value, opts.Width))
		body.WriteString("\n")
	}
	body.WriteString(rule)

	segments := []segment{
		{text: title + "\n", opts: header},
		{text: body.String(), opts: escpos.TextOptions{Encoding: opts.Encoding}},
		{
			text: "Printed: " + opts.Now().Format("2006-01-02 15:04") + "\n",
			opts: escpos.TextOptions{Encoding: opts.Encoding, Align: escpos.AlignCenter},
		},
	}

	if id := rec.ApplicationID; id.Available() {
		barcode := escpos.New().
			Align(escpos.AlignCenter).
			Barcode128(id.String(), barcodeHeight, barcodeWidth, escpos.HRIBelow).
			Line("", "").
			Align(escpos.AlignLeft)
		if err := barcode.Err(); err != nil {
			return nil, fmt.Errorf("barcode for %q: %w", id.String(), err)
		}
		segments = append(segments, segment{raw: barcode.Bytes()})
	}

	segments = append(segments, segment{raw: escpos.New().Feed(feedLines).Cut().Bytes()})
	return segments, nil
}

// Field is one label/value line of the ticket
type Field struct {
	Label string
	Value string
}

// Fields returns the ticket lines for rec. Absent values are left out.
func Fields(rec *application.Record) []Field {
	var fields []Field
	add := func(label string, v application.Value) {
		if v.Available() {
			fields = append(fields, Field{Label: label, Value: v.String()})
		}
	}

	add("App ID", rec.ApplicationID)
	if u := rec.User; u != nil {
		add("Name", u.FullName)
		add("Phone", u.Phone)
		add("Passport", u.PassportNo)
	}
	if j := rec.Job; j != nil {
		add("Job", j.Title)
		add("Vacancy", j.VacancyCode)
	}
	if s := rec.Schedule; s != nil {
		if d := s.Schedule; d != nil {
			if d.Type.Available() {
				fields = append(fields, Field{Label: "Stage", Value: application.InterviewTypeLabel(d.Type.String())})
			}
			add("Date", d.DateFormatted)
			add("Time", d.TimeFormatted)
			if d.Venue != nil {
				add("Venue", d.Venue.Name)
			}
		}
		if s.Status.Available() {
			fields = append(fields, Field{Label: "Status", Value: application.StatusLabel(s.Status.String())})
		}
	}
	return fields
}

// Line formats "label: value" within width columns, truncating the value
func Line(label, value string, width int) string {
	prefix := label + ": "
	budget := width - utf8.RuneCountInString(prefix)
	value = strings.Join(strings.Fields(value), " ")
	if budget < len(ellipsis)+1 {
		return Truncate(prefix+value, width)
	}
	return prefix + Truncate(value, budget)
}

// Truncate shortens s to at most width runes, ending in "..." when cut
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	if width <= len(ellipsis) {
		return string(runes[:width])
	}
	return string(runes[:width-len(ellipsis)]) + ellipsis
}

// TestReceipt prints a fixed receipt to check the printer end to end
func TestReceipt(ctx context.Context, p Printer, now time.Time) error {
	if err := p.InitPrinter(ctx); err != nil {
		return fmt.Errorf("init printer: %w", err)
	}

	border := strings.Repeat("=", DefaultWidth) + "\n"
	rule := strings.Repeat("-", DefaultWidth) + "\n"
	text := "TEST RECEIPT\n" +
		border +
		"Date: " + now.Format("2006-01-02 15:04:05") + "\n" +
		rule +
		"Item              Qty    Price\n" +
		rule +
		"Test Item 1        2    $10.00\n" +
		"Test Item 2        1     $5.00\n" +
		rule +
		"TOTAL:                  $15.00\n" +
		border +
		"Thank you!\n\n\n\n"

	if err := p.PrintText(ctx, text, escpos.TextOptions{}); err != nil {
		return &PrintError{Completed: 0, Total: 1, Err: err}
	}
	return nil
}
