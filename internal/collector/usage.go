package collector

import (
	"regexp"
	"strings"

	"emporia-vue-exporter/internal/vue"
)

const (
	minutesPerHour   = 60
	wattsPerKilowatt = 1000.0
)

// Roll-up pseudo-channels reported alongside real circuits; exporting them
// would double-count the per-circuit values.
var excludedChannels = map[string]struct{}{
	"Balance":    {},
	"TotalUsage": {},
}

// Reading is one converted channel sample from the latest poll.
type Reading struct {
	Device     string // normalized channel label
	ChannelNum string
	DeviceName string
	DeviceGID  int
	Watts      float64
}

var (
	nonLabelChars  = regexp.MustCompile(`[^a-z0-9_]`)
	underscoreRuns = regexp.MustCompile(`_+`)
)

// normalizeChannelLabel lowercases the channel name and squashes everything
// outside [a-z0-9_] so it is usable as a label value.
func normalizeChannelLabel(name string) string {
	label := nonLabelChars.ReplaceAllString(strings.ToLower(name), "_")
	label = underscoreRuns.ReplaceAllString(label, "_")
	if label == "" || label == "_" {
		return "main"
	}
	return label
}

// kwhPerMinuteToWatts converts a one-minute kWh reading to average watts.
func kwhPerMinuteToWatts(kwh float64) float64 {
	return kwh * wattsPerKilowatt * minutesPerHour
}

// flattenUsage converts the vendor usage tree into readings, recursing into
// devices nested under a channel (e.g. smart plugs behind a hub).
func flattenUsage(usages []vue.DeviceUsage, names map[int]string) []Reading {
	var readings []Reading
	for _, usage := range usages {
		readings = appendDeviceReadings(readings, usage, names)
	}
	return readings
}

func appendDeviceReadings(readings []Reading, usage vue.DeviceUsage, names map[int]string) []Reading {
	name, ok := names[usage.DeviceGID]
	if !ok {
		name = "Unknown Device"
	}

	for _, ch := range usage.ChannelUsages {
		if _, excluded := excludedChannels[ch.ChannelNum]; excluded {
			continue
		}

		for _, nested := range ch.NestedDevices {
			readings = appendDeviceReadings(readings, nested, names)
		}

		if ch.Usage == nil {
			continue
		}

		readings = append(readings, Reading{
			Device:     normalizeChannelLabel(ch.Name),
			ChannelNum: ch.ChannelNum,
			DeviceName: name,
			DeviceGID:  usage.DeviceGID,
			Watts:      kwhPerMinuteToWatts(*ch.Usage),
		})
	}
	return readings
}
