package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Comcast/gots/packet"
)

// WriteTransportStream writes a capture-like file of MPEG-TS packets on pid
// 0x100 and returns its bytes. Every packet starts a payload unit and carries
// a running continuity counter. A count <= 0 writes one packet.
func WriteTransportStream(t testing.TB, path string, packets int) []byte {
	t.Helper()

	if packets <= 0 {
		packets = 1
	}
	data := make([]byte, 0, packets*packet.PacketSize)
	for i := range packets {
		pkt := make([]byte, packet.PacketSize)
		pkt[0] = 0x47
		pkt[1] = 0x41
		pkt[2] = 0x00
		pkt[3] = 0x10 | byte(i&0x0f)
		for j := 4; j < len(pkt); j++ {
			pkt[j] = 0xff
		}
		data = append(data, pkt...)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return data
}
