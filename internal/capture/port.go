package capture

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// FreePort returns the first port in [portMin, portMax] on which both a TCP listener
// and a UDP socket can be bound and released. It returns 0 when none is free.
func FreePort(portMin, portMax int) int {
	for port := portMin; port <= portMax; port++ {
		if portFree(port) {
			return port
		}
	}
	return 0
}

func portFree(port int) bool {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	tcp, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	udp, err := net.ListenPacket("udp", addr)
	if err != nil {
		_ = tcp.Close()
		return false
	}
	_ = udp.Close()
	_ = tcp.Close()
	return true
}

// udpBound reports whether some other socket already holds the UDP port.
// The kernel socket tables are consulted first so the probe never competes
// with a reader that is about to bind.
func udpBound(port int) bool {
	if bound, ok := procUDPBound(port); ok {
		return bound
	}
	conn, err := net.ListenPacket("udp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return errors.Is(err, unix.EADDRINUSE)
	}
	_ = conn.Close()
	return false
}

func procUDPBound(port int) (bound bool, ok bool) {
	want := fmt.Sprintf(":%04X", port)
	for _, table := range []string{"/proc/net/udp", "/proc/net/udp6"} {
		data, err := os.ReadFile(table)
		if err != nil {
			continue
		}
		ok = true
		for _, line := range strings.Split(string(data), "\n")[1:] {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			if strings.HasSuffix(fields[1], want) {
				return true, true
			}
		}
	}
	return false, ok
}

// WaitForListener polls until a reader has bound the UDP port, the timeout
// passes or stop closes. It returns true when the reader was seen.
func WaitForListener(port int, timeout time.Duration, stop <-chan struct{}) bool {
	const step = 20 * time.Millisecond
	deadline := time.Now().Add(timeout)
	for {
		if udpBound(port) {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		wait := step
		if wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-stop:
			timer.Stop()
			return false
		}
	}
}
