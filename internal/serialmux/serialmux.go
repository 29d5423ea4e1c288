// Package serialmux provides an abstraction over the sensor's serial port
// with the ability for multiple clients to subscribe to line events and send
// commands to the single attached device.
package serialmux

import (
	"bufio"
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/stillwatch-data/sedentary.report/internal/monitoring"
)

var ErrWriteFailed = fmt.Errorf("failed to write to serial port")

var ErrReconnectUnsupported = fmt.Errorf("serial port cannot be reopened")

// reconnectDelay is how long Monitor waits after a read failure before
// reopening the port. The sensor needs a moment to reset after an unplug.
var reconnectDelay = time.Second

// SerialMux is a generic serial port multiplexer that allows multiple clients
// to subscribe to events from a single serial port.
type SerialMux[T SerialPorter] struct {
	port    T
	portGen int
	portMu  sync.Mutex

	// reopen, when set, recreates the underlying port after a read failure
	// or an explicit Reconnect. Unset for ports that cannot be reopened.
	reopen func() (T, error)

	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// SerialMuxInterface defines the interface for the SerialMux type.
type SerialMuxInterface interface {
	// Subscribe creates a new channel for receiving line events from the
	// serial port. The channel ID identifies the channel when unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// SendCommand writes the provided command to the serial port.
	SendCommand(string) error
	// Monitor reads lines from the serial port and fans them out to
	// subscribers.
	Monitor(context.Context) error
	// Reconnect closes the current serial port and reopens it at the same
	// path. Returns ErrReconnectUnsupported if the port cannot be reopened.
	Reconnect() error
	// Close closes all subscribed channels and closes the serial port.
	Close() error

	Initialize() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given HTTP
	// mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// NewSerialMux creates a SerialMux instance backed by the given port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the serial mux.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Initialize syncs the clock to the sensor and restarts its sample stream.
// The firmware buffers banner text on boot, so a stream restart guarantees
// the next line is a parseable sample.
func (s *SerialMux[T]) Initialize() error {
	command := fmt.Sprintf("T=%d", time.Now().Unix())
	if err := s.SendCommand(command); err != nil {
		return fmt.Errorf("failed to synchronize clock: %w", err)
	}

	if err := s.SendCommand("R"); err != nil {
		return fmt.Errorf("failed to restart sample stream: %w", err)
	}

	return nil
}

// currentPort returns the active port together with its generation counter.
// The generation changes whenever Reconnect swaps the port.
func (s *SerialMux[T]) currentPort() (T, int) {
	s.portMu.Lock()
	defer s.portMu.Unlock()
	return s.port, s.portGen
}

// Reconnect reopens the serial port at its original path and swaps it in.
// The previous port is closed afterwards, which unblocks any read pending
// on it.
func (s *SerialMux[T]) Reconnect() error {
	if s.reopen == nil {
		return ErrReconnectUnsupported
	}
	port, err := s.reopen()
	if err != nil {
		return fmt.Errorf("failed to reopen serial port: %w", err)
	}

	s.portMu.Lock()
	old := s.port
	s.port = port
	s.portGen++
	s.portMu.Unlock()

	old.Close()
	return nil
}

// SendCommand sends a command to the serial port.
func (s *SerialMux[T]) SendCommand(command string) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !bytes.HasSuffix([]byte(command), []byte("\n")) {
		command += "\n" // ensure command ends with a newline
	}
	port, _ := s.currentPort()
	n, err := port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor monitors the serial port for events and sends them to subscribers.
// When the port supports reopening, a read failure closes and reopens it
// after a short delay and monitoring resumes, so a transient sensor unplug
// does not end the stream.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	for {
		port, gen := s.currentPort()
		err := s.monitorPort(ctx, port)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.closingMu.Lock()
		closing := s.closing
		s.closingMu.Unlock()
		if closing {
			return nil
		}
		if err == nil || s.reopen == nil {
			return err
		}

		monitoring.Logf("serial read failed: %v, reconnecting in %v", err, reconnectDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}

		// Skip the reopen if someone else already swapped the port, e.g. an
		// explicit Reconnect racing with this read failure.
		if _, cur := s.currentPort(); cur == gen {
			if rerr := s.Reconnect(); rerr != nil {
				monitoring.Logf("serial reconnect failed: %v", rerr)
			}
		}
	}
}

// monitorPort reads lines from one port until the context is cancelled, the
// mux is closing, or the port fails. A nil return means a clean end of
// stream.
func (s *SerialMux[T]) monitorPort(ctx context.Context, port T) error {
	scan := bufio.NewScanner(port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// read from the serial port in its own goroutine so the blocking
	// scan.Scan does not interfere with the outer loop awaiting lines and
	// context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			// if the channel is closed, we're done reading from the serial port
			if !ok {
				if err := scan.Err(); err != nil {
					return err
				}
				return nil
			}

			s.closingMu.Lock()
			if s.closing {
				s.closingMu.Unlock()
				return nil
			}
			s.closingMu.Unlock()

			s.subscriberMu.Lock()
			for _, ch := range s.subscribers {
				select {
				case ch <- line:
				default:
					// skip full/blocking channels so as not to stall the fan-out
				}
			}
			s.subscriberMu.Unlock()
		}
	}
}

func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	port, _ := s.currentPort()
	return port.Close()
}
