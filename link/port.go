package link

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// DefaultBaudrate matches the PAROL6 controller firmware.
const DefaultBaudrate = 9600

// readTimeout bounds each blocking read so the reader notices shutdown.
const readTimeout = 100 * time.Millisecond

// Port is the byte stream a Link runs over. go.bug.st/serial ports satisfy it.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
}

// Opener opens a port by path and baud rate.
type Opener func(path string, baudrate int) (Port, error)

// OpenSerial opens a serial port 8N1 at baudrate with a short read timeout.
func OpenSerial(path string, baudrate int) (Port, error) {
	if baudrate == 0 {
		baudrate = DefaultBaudrate
	}
	mode := &serial.Mode{
		BaudRate: baudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", path)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, errors.Wrapf(err, "failed to set read timeout on %s", path)
	}
	return port, nil
}
