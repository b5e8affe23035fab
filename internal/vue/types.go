package vue

// Scale and unit values accepted by the usage endpoint.
const (
	Scale1Min         = "1MIN"
	UnitKilowattHours = "KilowattHours"
)

// Device describes a metering device on the account. Hub-style devices list
// the units connected through them under Devices.
type Device struct {
	DeviceGID  int      `json:"deviceGid"`
	DeviceName string   `json:"deviceName"`
	Model      string   `json:"model"`
	Firmware   string   `json:"firmware"`
	Devices    []Device `json:"devices"`
}

type devicesResponse struct {
	CustomerGID int      `json:"customerGid"`
	Devices     []Device `json:"devices"`
}

// ChannelUsage is the usage reported for one circuit/channel. Usage is nil
// when the vendor has no reading for the requested instant. Channels can
// carry further devices (e.g. smart plugs) under NestedDevices.
type ChannelUsage struct {
	Name          string        `json:"name"`
	ChannelNum    string        `json:"channelNum"`
	Usage         *float64      `json:"usage"`
	Percentage    float64       `json:"percentage"`
	NestedDevices []DeviceUsage `json:"nestedDevices"`
}

// DeviceUsage groups the channel readings of one device.
type DeviceUsage struct {
	DeviceGID     int            `json:"deviceGid"`
	ChannelUsages []ChannelUsage `json:"channelUsages"`
}

type usageResponse struct {
	DeviceListUsages struct {
		Instant string        `json:"instant"`
		Scale   string        `json:"scale"`
		Unit    string        `json:"unit"`
		Devices []DeviceUsage `json:"devices"`
	} `json:"deviceListUsages"`
}
