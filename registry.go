package parol6

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"parol6/link"
)

type linkEntry struct {
	link       *link.Link
	baudrate   int
	ackTimeout time.Duration
	refCount   int64
	mu         sync.RWMutex
}

// LinkRegistry shares one Link per serial port path between its users and closes it when the
// last one releases it.
type LinkRegistry struct {
	entries map[string]*linkEntry
	mu      sync.RWMutex

	open   link.Opener
	logger logging.Logger
}

// NewLinkRegistry creates a registry opening ports with open, or link.OpenSerial when nil.
func NewLinkRegistry(open link.Opener, logger logging.Logger) *LinkRegistry {
	if open == nil {
		open = link.OpenSerial
	}
	return &LinkRegistry{
		entries: make(map[string]*linkEntry),
		open:    open,
		logger:  logger,
	}
}

// Acquire returns the connected link for portPath, opening it on first use. A second user
// asking for a different baud rate or ack timeout gets a conflict error.
func (r *LinkRegistry) Acquire(portPath string, baudrate int, ackTimeout time.Duration) (*link.Link, error) {
	if baudrate == 0 {
		baudrate = link.DefaultBaudrate
	}
	if ackTimeout == 0 {
		ackTimeout = link.DefaultAckTimeout
	}

	r.mu.RLock()
	entry, exists := r.entries[portPath]
	r.mu.RUnlock()
	if exists {
		return r.acquireExisting(entry, baudrate, ackTimeout)
	}
	return r.createLink(portPath, baudrate, ackTimeout)
}

func (r *LinkRegistry) acquireExisting(entry *linkEntry, baudrate int, ackTimeout time.Duration) (*link.Link, error) {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.link == nil {
		return nil, errors.New("link was closed while being acquired")
	}
	if entry.baudrate != baudrate || entry.ackTimeout != ackTimeout {
		return nil, errors.Errorf("conflict: existing link uses %d baud and %s ack timeout (refCount: %d)",
			entry.baudrate, entry.ackTimeout, atomic.LoadInt64(&entry.refCount))
	}
	atomic.AddInt64(&entry.refCount, 1)
	return entry.link, nil
}

func (r *LinkRegistry) createLink(portPath string, baudrate int, ackTimeout time.Duration) (*link.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists := r.entries[portPath]; exists {
		return r.acquireExisting(entry, baudrate, ackTimeout)
	}

	port, err := r.open(portPath, baudrate)
	if err != nil {
		return nil, err
	}
	l := link.New(r.logger.Sublogger("link"), ackTimeout, nil)
	if err := l.Connect(port); err != nil {
		port.Close()
		return nil, err
	}

	r.entries[portPath] = &linkEntry{
		link:       l,
		baudrate:   baudrate,
		ackTimeout: ackTimeout,
		refCount:   1,
	}
	r.logger.Infof("Opened link on %s at %d baud", portPath, baudrate)
	return l, nil
}

// Release drops one reference and disconnects the link when none remain.
func (r *LinkRegistry) Release(portPath string) {
	r.mu.RLock()
	entry, exists := r.entries[portPath]
	r.mu.RUnlock()
	if !exists {
		return
	}

	entry.mu.Lock()
	remaining := atomic.AddInt64(&entry.refCount, -1)
	var l *link.Link
	if remaining <= 0 {
		l, entry.link = entry.link, nil
		atomic.StoreInt64(&entry.refCount, 0)
	}
	entry.mu.Unlock()
	if remaining > 0 {
		return
	}

	r.mu.Lock()
	if r.entries[portPath] == entry {
		delete(r.entries, portPath)
	}
	r.mu.Unlock()

	if l != nil {
		if err := l.Disconnect(); err != nil {
			r.logger.Warnf("error closing shared link for port %s: %v", portPath, err)
		}
	}
}

// ForceClose disconnects the link regardless of outstanding references.
func (r *LinkRegistry) ForceClose(portPath string) error {
	r.mu.Lock()
	entry, exists := r.entries[portPath]
	if exists {
		delete(r.entries, portPath)
	}
	r.mu.Unlock()
	if !exists {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	var err error
	if entry.link != nil {
		err = entry.link.Disconnect()
		entry.link = nil
	}
	atomic.StoreInt64(&entry.refCount, 0)
	return err
}

// Status reports the reference count, whether a link is open and a short summary.
func (r *LinkRegistry) Status(portPath string) (int64, bool, string) {
	r.mu.RLock()
	entry, exists := r.entries[portPath]
	r.mu.RUnlock()
	if !exists {
		return 0, false, ""
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()

	connected := entry.link != nil && entry.link.IsConnected()
	summary := fmt.Sprintf("Serial: %s@%d, ack timeout: %s, connected: %v", portPath, entry.baudrate, entry.ackTimeout, connected)
	return atomic.LoadInt64(&entry.refCount), entry.link != nil, summary
}

// Ports lists the open port paths.
func (r *LinkRegistry) Ports() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ports := make([]string, 0, len(r.entries))
	for p := range r.entries {
		ports = append(ports, p)
	}
	return ports
}
