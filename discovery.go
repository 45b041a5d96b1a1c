package parol6

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.bug.st/serial/enumerator"
	"go.viam.com/rdk/logging"
)

// PortInfo describes a serial port found on the host.
type PortInfo struct {
	Name         string
	Suffix       string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
}

// listPorts is swapped out in tests.
var listPorts = enumerator.GetDetailedPortsList

// ListPorts returns every serial port on the host, sorted by name.
func ListPorts() ([]PortInfo, error) {
	details, err := listPorts()
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate serial ports")
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			Suffix:       extractPortSuffix(d.Name),
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
		})
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports, nil
}

// DiscoverPorts returns the ports that could host the arm controller's USB serial bridge.
func DiscoverPorts(logger logging.Logger) ([]PortInfo, error) {
	all, err := ListPorts()
	if err != nil {
		return nil, err
	}
	logger.Debugf("Found %d total serial ports", len(all))

	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.Name
	}
	keep := make(map[string]bool)
	for _, name := range filterCandidatePorts(names) {
		keep[name] = true
	}

	candidates := []PortInfo{}
	for _, p := range all {
		if keep[p.Name] {
			candidates = append(candidates, p)
		}
	}
	logger.Debugf("Filtered to %d candidate ports", len(candidates))
	return candidates, nil
}

// FirstPort picks the first candidate port.
func FirstPort(logger logging.Logger) (string, error) {
	candidates, err := DiscoverPorts(logger)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", errors.New("no candidate serial ports found")
	}
	logger.Infof("Using serial port %s", candidates[0].Name)
	return candidates[0].Name, nil
}

// filterCandidatePorts filters serial ports by platform-specific naming patterns
func filterCandidatePorts(ports []string) []string {
	candidates := []string{}
	for _, port := range ports {
		if isCandidatePort(port) {
			candidates = append(candidates, port)
		}
	}
	return candidates
}

// isCandidatePort matches USB serial bridges: ttyUSB/ttyACM on Linux, usbmodem/usbserial on
// macOS and COM ports on Windows.
func isCandidatePort(port string) bool {
	for _, prefix := range []string{
		"/dev/ttyUSB", "/dev/ttyACM",
		"/dev/tty.usbmodem", "/dev/tty.usbserial", "/dev/cu.usbmodem", "/dev/cu.usbserial",
		"COM",
	} {
		if strings.HasPrefix(port, prefix) {
			return true
		}
	}
	return false
}

// extractPortSuffix extracts a friendly suffix from port path for naming
// /dev/ttyACM0 -> "ttyACM0"
// COM3 -> "COM3"
// /dev/cu.usbmodem123 -> "usbmodem123"
func extractPortSuffix(portPath string) string {
	base := filepath.Base(portPath)
	if strings.HasPrefix(base, "tty.usb") {
		return strings.TrimPrefix(base, "tty.")
	}
	if strings.HasPrefix(base, "cu.usb") {
		return strings.TrimPrefix(base, "cu.")
	}
	return base
}
