package printer

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/nixxel-company-limited/escpos-checkin/adapter"
	"github.com/nixxel-company-limited/escpos-checkin/escpos"
)

// link implements the printing half of Driver on top of an open adapter
type link struct {
	mu      sync.Mutex
	adapter adapter.Adapter
}

func (l *link) attach(a adapter.Adapter) {
	l.mu.Lock()
	l.adapter = a
	l.mu.Unlock()
}

func (l *link) detach() adapter.Adapter {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.adapter
	l.adapter = nil
	return a
}

func (l *link) attached() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.adapter != nil
}

// Write sends data, retrying short writes until everything is written
func (l *link) Write(ctx context.Context, data []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.adapter == nil {
		return 0, adapter.ErrNotOpen
	}

	written := 0
	for written < len(data) {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := l.adapter.Write(data[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// PrinterInit sends ESC @
func (l *link) PrinterInit(ctx context.Context) error {
	if _, err := l.Write(ctx, escpos.New().Init().Bytes()); err != nil {
		return fmt.Errorf("printer init: %w", err)
	}
	return nil
}

// PrintText renders options and text and sends them
func (l *link) PrintText(ctx context.Context, text string, opts escpos.TextOptions) error {
	data, err := opts.Render(text)
	if err != nil {
		return err
	}
	if _, err := l.Write(ctx, data); err != nil {
		return fmt.Errorf("print text: %w", err)
	}
	return nil
}
