package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/Comcast/gots/packet"

	"tvrec/internal/job"
)

// copyChunk is a whole number of transport packets.
const copyChunk = 348 * packet.PacketSize

// CopyJob copies raw bytes from a device node (or any file) to a sink until
// the source ends or the job is stopped.
type CopyJob struct {
	job.Base

	source   string
	openSink func() (io.WriteCloser, error)

	mu      sync.Mutex
	src     io.ReadCloser
	sink    io.WriteCloser
	written atomic.Int64
}

// NewFileCopy copies source into a newly created dest file.
func NewFileCopy(source, dest string) *CopyJob {
	return newCopy("copy", source, func() (io.WriteCloser, error) {
		return os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	})
}

// NewUDPCopy streams source to addr as transport stream datagrams.
func NewUDPCopy(source, addr string) *CopyJob {
	return newCopy("relay-sender", source, func() (io.WriteCloser, error) {
		return DialUDPSink(addr)
	})
}

func newCopy(name, source string, openSink func() (io.WriteCloser, error)) *CopyJob {
	j := &CopyJob{source: source, openSink: openSink}
	j.JobName = name
	return j
}

// Written returns the number of bytes copied so far.
func (j *CopyJob) Written() int64 { return j.written.Load() }

func (j *CopyJob) Start() error {
	src, err := os.Open(j.source)
	if err != nil {
		return fmt.Errorf("open source %s: %w", j.source, err)
	}
	sink, err := j.openSink()
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("open sink: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Terminated() {
		_ = src.Close()
		_ = sink.Close()
		return job.ErrStopped
	}
	j.src = src
	j.sink = sink
	return nil
}

func (j *CopyJob) Run() {
	j.mu.Lock()
	src, sink := j.src, j.sink
	j.mu.Unlock()

	buf := make([]byte, copyChunk)
	var copyErr error
	for !j.Terminated() {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := sink.Write(buf[:n]); werr != nil {
				copyErr = werr
				break
			}
			j.written.Add(int64(n))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !j.Terminated() {
				copyErr = err
			}
			break
		}
	}
	j.closeSource()
	if err := sink.Close(); err != nil && copyErr == nil {
		copyErr = err
	}
	if copyErr != nil {
		j.FireUpdate(j, fmt.Sprintf("copy from %s stopped: %v", j.source, copyErr), nil)
	}
	j.FireComplete(j, j.Written(), nil)
}

// Stop closes the source so a blocked read returns.
func (j *CopyJob) Stop() {
	if j.Terminate() {
		j.closeSource()
	}
}

func (j *CopyJob) closeSource() {
	j.mu.Lock()
	src := j.src
	j.src = nil
	j.mu.Unlock()
	if src != nil {
		_ = src.Close()
	}
}
