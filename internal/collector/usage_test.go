package collector

import (
	"testing"

	"emporia-vue-exporter/internal/vue"
)

func TestNormalizeChannelLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Heat Pump", "heat_pump"},
		{"A/C  (Upstairs)", "a_c_upstairs_"},
		{"dryer", "dryer"},
		{"Main", "main"},
		{"", "main"},
		{"---", "main"},
	}
	for _, c := range cases {
		if got := normalizeChannelLabel(c.in); got != c.want {
			t.Errorf("normalizeChannelLabel(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestKwhPerMinuteToWatts(t *testing.T) {
	// 0.00002 kWh over one minute averages 1.2 W.
	if got := kwhPerMinuteToWatts(0.00002); got != 1.2 {
		t.Errorf("Expected 1.2 W, got %f", got)
	}
	if got := kwhPerMinuteToWatts(0); got != 0 {
		t.Errorf("Expected 0 W, got %f", got)
	}
}

func TestFlattenUsage_ExcludesRollupChannels(t *testing.T) {
	usages := []vue.DeviceUsage{
		{DeviceGID: 1000, ChannelUsages: []vue.ChannelUsage{
			{Name: "Main", ChannelNum: "1,2,3", Usage: ptr(0.001)},
			{Name: "Balance", ChannelNum: "Balance", Usage: ptr(0.5)},
			{Name: "Total Usage", ChannelNum: "TotalUsage", Usage: ptr(0.5)},
		}},
	}
	readings := flattenUsage(usages, map[int]string{1000: "Home"})

	if len(readings) != 1 {
		t.Fatalf("Expected 1 reading, got %d", len(readings))
	}
	if readings[0].ChannelNum != "1,2,3" {
		t.Errorf("Expected channel 1,2,3 to survive, got %q", readings[0].ChannelNum)
	}
}

func TestFlattenUsage_SkipsMissingReadings(t *testing.T) {
	usages := []vue.DeviceUsage{
		{DeviceGID: 1000, ChannelUsages: []vue.ChannelUsage{
			{Name: "Main", ChannelNum: "1,2,3", Usage: nil},
			{Name: "Dryer", ChannelNum: "4", Usage: ptr(0.002)},
		}},
	}
	readings := flattenUsage(usages, map[int]string{1000: "Home"})

	if len(readings) != 1 {
		t.Fatalf("Expected 1 reading, got %d", len(readings))
	}
	if readings[0].Device != "dryer" {
		t.Errorf("Expected dryer, got %q", readings[0].Device)
	}
}

func TestFlattenUsage_RecursesNestedDevices(t *testing.T) {
	usages := []vue.DeviceUsage{
		{DeviceGID: 1000, ChannelUsages: []vue.ChannelUsage{
			{
				Name:       "Main",
				ChannelNum: "1,2,3",
				Usage:      ptr(0.001),
				NestedDevices: []vue.DeviceUsage{
					{DeviceGID: 2000, ChannelUsages: []vue.ChannelUsage{
						{Name: "Space Heater", ChannelNum: "1", Usage: ptr(0.0005)},
					}},
				},
			},
		}},
	}
	readings := flattenUsage(usages, map[int]string{1000: "Home", 2000: "Plug"})

	if len(readings) != 2 {
		t.Fatalf("Expected 2 readings, got %d", len(readings))
	}

	var nested *Reading
	for i := range readings {
		if readings[i].DeviceGID == 2000 {
			nested = &readings[i]
		}
	}
	if nested == nil {
		t.Fatal("Expected a reading from the nested device")
	}
	if nested.Device != "space_heater" {
		t.Errorf("Expected space_heater, got %q", nested.Device)
	}
	if nested.DeviceName != "Plug" {
		t.Errorf("Expected nested device name Plug, got %q", nested.DeviceName)
	}
	if nested.Watts != 30.0 {
		t.Errorf("Expected 30 W, got %f", nested.Watts)
	}
}
