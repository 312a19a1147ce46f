package types

// Profile is the per-board configuration embedded in the firmware image
// (services/config). Durations are whole milliseconds or seconds so the
// YAML stays readable.

type Profile struct {
	Board    string         `yaml:"board"`
	LogLevel string         `yaml:"log_level"`
	Device   DeviceInfo     `yaml:"device"`
	Sampler  SamplerConfig  `yaml:"sampler"`
	Buttons  ButtonsConfig  `yaml:"buttons"`
	Watchdog WatchdogConfig `yaml:"heartbeat"`
	Update   UpdateConfig   `yaml:"update"`
	Sessions SessionsConfig `yaml:"sessions"`
}

// DeviceInfo holds the static identity strings exposed over the device
// information service. FirmwareRev is filled from the version package.
type DeviceInfo struct {
	Name         string `yaml:"name"`
	Model        string `yaml:"model"`
	Manufacturer string `yaml:"manufacturer"`
	HardwareRev  string `yaml:"hardware_rev"`
	FirmwareRev  string `yaml:"-"`
}

type SamplerConfig struct {
	IntervalS int       `yaml:"interval_s"`
	Sensor    string    `yaml:"sensor"` // "die" | "shtc3" | "fake"
	I2C       I2CConfig `yaml:"i2c"`
}

type I2CConfig struct {
	Bus string `yaml:"bus"` // "i2c0", "i2c1"
	SDA int    `yaml:"sda"`
	SCL int    `yaml:"scl"`
	Hz  uint32 `yaml:"hz"`
}

type ButtonsConfig struct {
	PinA int    `yaml:"pin_a"`
	PinB int    `yaml:"pin_b"`
	Pull string `yaml:"pull"` // "up" | "down" | "none"
}

// WatchdogConfig drives the Liveness Monitor. PetMs must be below TimeoutMs.
type WatchdogConfig struct {
	TimeoutMs int `yaml:"timeout_ms"`
	PetMs     int `yaml:"pet_ms"`
}

type UpdateConfig struct {
	ImageSize  int `yaml:"image_size"`
	StateSize  int `yaml:"state_size"`
	QueueLen   int `yaml:"queue_len"`
	ChunkMax   int `yaml:"chunk_max"`
	FlashStart int `yaml:"flash_offset"`
}

// SessionsConfig sizes the session task arena: one worker runs sessions,
// Backlog connections may wait behind it.
type SessionsConfig struct {
	Workers int `yaml:"workers"`
	Backlog int `yaml:"backlog"`
}
