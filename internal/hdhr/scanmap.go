package hdhr

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"tvrec/internal/device"
	"tvrec/internal/fileutil"
	"tvrec/internal/services"
)

// DefaultScanFile is read when a device has no scan file of its own.
const DefaultScanFile = "default-scan.conf"

// ScanFileName is "<device-key>-scan.conf".
func ScanFileName(deviceKey string) string {
	return deviceKey + "-scan.conf"
}

// ScanEntry maps a channel number to the program reference and RF channel
// found for it.
type ScanEntry struct {
	Number    string
	Reference string
	Frequency int
}

// ScanMap is keyed by channel number.
type ScanMap map[string]ScanEntry

// MergeScan matches scan results against channels by reference number. When
// channels is empty every result is kept and its program becomes the channel
// number.
func MergeScan(results []ScanResult, channels []device.Channel) ScanMap {
	byProgram := make(map[string]ScanResult, len(results))
	for _, r := range results {
		if _, ok := byProgram[r.Program]; !ok {
			byProgram[r.Program] = r
		}
	}
	out := make(ScanMap)
	if len(channels) == 0 {
		for program, r := range byProgram {
			out[program] = ScanEntry{Number: program, Reference: program, Frequency: r.Frequency}
		}
		return out
	}
	for _, ch := range channels {
		ref := ch.ReferenceNumber
		if ref == "" {
			ref = ch.Number
		}
		r, ok := byProgram[ref]
		if !ok {
			continue
		}
		out[ch.Number] = ScanEntry{Number: ch.Number, Reference: ref, Frequency: r.Frequency}
	}
	return out
}

// Numbers returns the channel numbers in ascending order.
func (m ScanMap) Numbers() []string {
	numbers := make([]string, 0, len(m))
	for number := range m {
		numbers = append(numbers, number)
	}
	sort.Slice(numbers, func(i, j int) bool { return lessChannel(numbers[i], numbers[j]) })
	return numbers
}

// Channels lists the map as tunable channels, ordered by number.
func (m ScanMap) Channels() []device.Channel {
	out := make([]device.Channel, 0, len(m))
	for _, number := range m.Numbers() {
		e := m[number]
		out = append(out, device.Channel{Number: e.Number, Frequency: e.Frequency, ReferenceNumber: e.Reference})
	}
	return out
}

// Write emits one "<number>=<reference>:<frequency>" line per entry.
func (m ScanMap) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, number := range m.Numbers() {
		e := m[number]
		if _, err := fmt.Fprintf(bw, "%s=%s:%d\n", e.Number, e.Reference, e.Frequency); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ParseScanMap reads the format produced by Write. Blank lines and lines
// starting with '#' are skipped.
func ParseScanMap(r io.Reader) (ScanMap, error) {
	out := make(ScanMap)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		number, rest, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("scan map line %d: missing '='", lineNo)
		}
		idx := strings.LastIndexByte(rest, ':')
		if idx < 0 {
			return nil, fmt.Errorf("scan map line %d: missing ':'", lineNo)
		}
		frequency, err := strconv.Atoi(strings.TrimSpace(rest[idx+1:]))
		if err != nil {
			return nil, fmt.Errorf("scan map line %d: frequency: %w", lineNo, err)
		}
		number = strings.TrimSpace(number)
		out[number] = ScanEntry{
			Number:    number,
			Reference: strings.TrimSpace(rest[:idx]),
			Frequency: frequency,
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadScanMap reads the device's scan file from dir, falling back to
// DefaultScanFile. It returns the path that was read.
func LoadScanMap(dir, deviceKey string) (ScanMap, string, error) {
	for _, name := range []string{ScanFileName(deviceKey), DefaultScanFile} {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, path, fmt.Errorf("open scan map: %w", err)
		}
		m, err := ParseScanMap(f)
		_ = f.Close()
		if err != nil {
			return nil, path, services.Wrap(services.ErrValidation, "hdhr", "load scan map", path, err)
		}
		return m, path, nil
	}
	return nil, "", services.Wrap(services.ErrNotFound, "hdhr", "load scan map", deviceKey, nil)
}

// SaveScanMap writes m to the device's scan file in dir and returns its path.
func SaveScanMap(dir, deviceKey string, m ScanMap) (string, error) {
	var b strings.Builder
	if err := m.Write(&b); err != nil {
		return "", err
	}
	path := filepath.Join(dir, ScanFileName(deviceKey))
	if err := fileutil.WriteFileAtomic(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write scan map: %w", err)
	}
	return path, nil
}

// lessChannel orders "5.1" before "5.10" before "12.1".
func lessChannel(a, b string) bool {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aerr := strconv.Atoi(as[i])
		bn, berr := strconv.Atoi(bs[i])
		if aerr == nil && berr == nil {
			if an != bn {
				return an < bn
			}
			continue
		}
		if as[i] != bs[i] {
			return as[i] < bs[i]
		}
	}
	return len(as) < len(bs)
}
