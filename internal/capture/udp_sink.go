package capture

import (
	"bytes"
	"fmt"
	"net"
	"sync"

	"github.com/Comcast/gots/packet"
)

const (
	syncByte           = 0x47
	packetsPerDatagram = 7
	udpWriteBuffer     = 4 * 1024 * 1024
)

// SinkStats summarizes what a UDPSink has sent.
type SinkStats struct {
	Packets    int64
	Datagrams  int64
	Units      int64
	SyncLosses int64
}

// UDPSink frames a transport stream into 188-byte packets and sends them as
// datagrams of seven packets. Bytes before a sync byte are dropped.
type UDPSink struct {
	conn *net.UDPConn

	mu       sync.Mutex
	pending  []byte
	datagram []byte
	stats    SinkStats
}

// DialUDPSink connects a sink to addr ("127.0.0.1:4888").
func DialUDPSink(addr string) (*UDPSink, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	_ = conn.SetWriteBuffer(udpWriteBuffer)
	return &UDPSink{
		conn:     conn,
		datagram: make([]byte, 0, packetsPerDatagram*packet.PacketSize),
	}, nil
}

// Write buffers p and sends every complete datagram.
func (s *UDPSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, p...)
	for {
		if len(s.pending) > 0 && s.pending[0] != syncByte {
			idx := bytes.IndexByte(s.pending, syncByte)
			s.stats.SyncLosses++
			if idx < 0 {
				s.pending = s.pending[:0]
				break
			}
			s.pending = s.pending[idx:]
		}
		if len(s.pending) < packet.PacketSize {
			break
		}
		var pkt packet.Packet
		copy(pkt[:], s.pending[:packet.PacketSize])
		s.pending = s.pending[packet.PacketSize:]
		s.stats.Packets++
		if packet.PayloadUnitStartIndicator(&pkt) {
			s.stats.Units++
		}
		s.datagram = append(s.datagram, pkt[:]...)
		if len(s.datagram) == cap(s.datagram) {
			if err := s.flushLocked(); err != nil {
				return 0, err
			}
		}
	}
	if len(s.pending) == 0 {
		s.pending = nil
	}
	return len(p), nil
}

func (s *UDPSink) flushLocked() error {
	if len(s.datagram) == 0 {
		return nil
	}
	_, err := s.conn.Write(s.datagram)
	s.datagram = s.datagram[:0]
	if err != nil {
		return err
	}
	s.stats.Datagrams++
	return nil
}

// Stats returns counters for packets and datagrams sent so far.
func (s *UDPSink) Stats() SinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close sends any buffered packets and closes the socket.
func (s *UDPSink) Close() error {
	s.mu.Lock()
	err := s.flushLocked()
	s.mu.Unlock()
	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	return err
}
