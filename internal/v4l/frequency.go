package v4l

import (
	"strconv"
	"strings"
)

// Frequency tables known to the local family.
const (
	TableUSBroadcast = "us-bcast"
	TableUSCable     = "us-cable"
)

// FrequencyTables lists the tables offered as configuration choices.
var FrequencyTables = []string{TableUSBroadcast, TableUSCable}

type band struct {
	first, last int
	baseKHz     int
}

// NTSC video carriers; each band is 6 MHz per channel from its base.
var tables = map[string][]band{
	TableUSBroadcast: {
		{2, 4, 55250},
		{5, 6, 77250},
		{7, 13, 175250},
		{14, 69, 471250},
	},
	TableUSCable: {
		{2, 4, 55250},
		{5, 6, 77250},
		{7, 13, 175250},
		{14, 22, 121250},
		{23, 94, 217250},
		{95, 99, 91250},
		{100, 158, 649250},
	},
}

// FrequencyKHz returns the video carrier of channel number in table. Only
// the part before any '.' is used. ok is false for unknown tables or channels.
func FrequencyKHz(table, number string) (int, bool) {
	bands, ok := tables[strings.ToLower(strings.TrimSpace(table))]
	if !ok {
		return 0, false
	}
	major, _, _ := strings.Cut(strings.TrimSpace(number), ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0, false
	}
	for _, b := range bands {
		if n >= b.first && n <= b.last {
			return b.baseKHz + (n-b.first)*6000, true
		}
	}
	return 0, false
}
