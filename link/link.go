// Package link carries newline-terminated ASCII commands to the arm controller and reads its
// telemetry lines back.
package link

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
)

// DefaultAckTimeout is how long an acknowledged send waits for OK.
const DefaultAckTimeout = time.Second

// maxPending caps a partial line; anything longer without a terminator is discarded.
const maxPending = 1024

var (
	// ErrNotConnected is returned by every send while no port is attached.
	ErrNotConnected = errors.New("link not connected")
	// ErrAckTimeout is returned when OK does not arrive in time.
	ErrAckTimeout = errors.New("acknowledgment timeout")
)

// LineHandler receives every complete, printable line read from the port.
type LineHandler func(line string)

// Link is a duplex line channel over a Port. Sends never queue or retry.
type Link struct {
	logger     logging.Logger
	ackTimeout time.Duration

	mu        sync.Mutex
	port      Port
	workers   *utils.StoppableWorkers
	connected atomic.Bool

	// one acknowledged exchange at a time
	ackMu sync.Mutex
	ackCh chan struct{}

	handlerMu sync.RWMutex
	handler   LineHandler
}

// New creates a disconnected link.
func New(logger logging.Logger, ackTimeout time.Duration, handler LineHandler) *Link {
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	return &Link{
		logger:     logger,
		ackTimeout: ackTimeout,
		ackCh:      make(chan struct{}, 1),
		handler:    handler,
	}
}

// SetHandler replaces the telemetry callback.
func (l *Link) SetHandler(h LineHandler) {
	l.handlerMu.Lock()
	l.handler = h
	l.handlerMu.Unlock()
}

// Connect attaches an open port and starts the reader.
func (l *Link) Connect(port Port) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port != nil {
		return errors.New("link already has a port attached")
	}
	l.port = port
	l.connected.Store(true)
	l.workers = utils.NewBackgroundStoppableWorkers(func(ctx context.Context) {
		l.readLoop(ctx, port)
	})
	l.logger.Debug("link connected")
	return nil
}

// Disconnect stops the reader and closes the port.
func (l *Link) Disconnect() error {
	l.mu.Lock()
	port, workers := l.port, l.workers
	l.port, l.workers = nil, nil
	l.connected.Store(false)
	l.mu.Unlock()

	if port == nil {
		return nil
	}
	err := port.Close()
	workers.Stop()
	l.logger.Debug("link disconnected")
	return err
}

// IsConnected reports whether sends can currently succeed.
func (l *Link) IsConnected() bool {
	return l.connected.Load()
}

// AckTimeout returns the configured acknowledgment timeout.
func (l *Link) AckTimeout() time.Duration {
	return l.ackTimeout
}

// Send writes msg followed by a newline. With waitAck it first clears any stale
// acknowledgment and flushes the input buffer, then waits for OK until the ack timeout
// or ctx expires.
func (l *Link) Send(ctx context.Context, msg string, waitAck bool) error {
	if !l.connected.Load() {
		return ErrNotConnected
	}
	if waitAck {
		l.ackMu.Lock()
		defer l.ackMu.Unlock()
	}

	l.mu.Lock()
	port := l.port
	if port == nil || !l.connected.Load() {
		l.mu.Unlock()
		return ErrNotConnected
	}
	if waitAck {
		l.clearAck()
		if err := port.ResetInputBuffer(); err != nil {
			l.logger.Debugf("failed to reset input buffer: %v", err)
		}
	}
	_, err := port.Write([]byte(strings.TrimSpace(msg) + "\n"))
	l.mu.Unlock()
	if err != nil {
		return errors.Wrapf(err, "failed to write %q", msg)
	}
	if !waitAck {
		return nil
	}

	timer := time.NewTimer(l.ackTimeout)
	defer timer.Stop()
	select {
	case <-l.ackCh:
		return nil
	case <-timer.C:
		return errors.Wrapf(ErrAckTimeout, "no %s for %q after %s", AckToken, msg, l.ackTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Link) clearAck() {
	select {
	case <-l.ackCh:
	default:
	}
}

func (l *Link) signalAck() {
	select {
	case l.ackCh <- struct{}{}:
	default:
	}
}

func (l *Link) readLoop(ctx context.Context, port Port) {
	buf := make([]byte, 256)
	var pending []byte
	for ctx.Err() == nil {
		n, err := port.Read(buf)
		if n > 0 {
			pending = l.consume(append(pending, buf[:n]...))
		}
		if err != nil {
			if ctx.Err() == nil && l.connected.Swap(false) {
				l.logger.Warnf("serial read failed, link is down: %v", err)
			}
			return
		}
	}
}

// consume dispatches every complete line in data and returns the unterminated remainder.
func (l *Link) consume(data []byte) []byte {
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		l.dispatch(string(data[:i]))
		data = data[i+1:]
	}
	if len(data) > maxPending {
		l.logger.Debugf("dropping %d bytes without a line terminator", len(data))
		return nil
	}
	return data
}

func (l *Link) dispatch(raw string) {
	line, ok := CleanLine(raw)
	if !ok {
		l.logger.Debugf("dropping malformed line %q", raw)
		return
	}
	if line == AckToken {
		l.signalAck()
	}
	l.handlerMu.RLock()
	h := l.handler
	l.handlerMu.RUnlock()
	if h != nil {
		h(line)
	}
}

// CleanLine trims whitespace and carriage returns and reports whether what remains is a
// non-empty line of printable ASCII.
func CleanLine(raw string) (string, bool) {
	line := strings.TrimSpace(strings.TrimRight(raw, "\r"))
	if line == "" {
		return "", false
	}
	for i := 0; i < len(line); i++ {
		if line[i] < 0x20 || line[i] > 0x7e {
			return "", false
		}
	}
	return line, true
}
