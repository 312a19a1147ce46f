package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: board id (the value the platform passes to Load)
// Val: raw YAML for that board
// -----------------------------------------------------------------------------

const cfgPicoW = `
board: pico_w
log_level: info
device:
  name: presenter
  model: Pico W
  manufacturer: Raspberry Pi
  hardware_rev: "1"
sampler:
  interval_s: 5
  sensor: die
  i2c:
    bus: i2c0
    sda: 4
    scl: 5
    hz: 400000
buttons:
  pin_a: 14
  pin_b: 15
  pull: up
heartbeat:
  timeout_ms: 5000
  pet_ms: 2000
update:
  image_size: 524288
  state_size: 4096
  queue_len: 10
  chunk_max: 128
  flash_offset: 0
sessions:
  workers: 1
  backlog: 1
`

const cfgHost = `
board: host
log_level: debug
device:
  name: presenter-sim
  model: Host Simulator
  manufacturer: presenter-fw
  hardware_rev: sim
sampler:
  interval_s: 5
  sensor: fake
heartbeat:
  timeout_ms: 5000
  pet_ms: 2000
update:
  image_size: 524288
  state_size: 4096
  queue_len: 10
  chunk_max: 128
sessions:
  workers: 1
  backlog: 1
`

var embeddedConfigs = map[string][]byte{
	"pico_w": []byte(cfgPicoW),
	"host":   []byte(cfgHost),
}
