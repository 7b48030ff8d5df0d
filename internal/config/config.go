// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Transport names accepted in TRANSPORTS.
const (
	TransportBLE    = "ble"
	TransportMQTT   = "mqtt"
	TransportWS     = "ws"
	TransportSerial = "serial"
)

// Config holds all device configuration values.
type Config struct {
	DeviceName string

	// I2C bus and IMU
	I2CBus      string
	I2CSpeedKHz int
	IMUI2CAddr  uint16
	IMUWhoAmI   byte // 0 disables the identity check
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// Recording switch
	RecordingPin string
	DebounceMS   int

	// Sampling loop timing, milliseconds
	SamplePeriodMS int
	IdlePollMS     int
	BusyPollMS     int

	StreamEnabledAtBoot bool
	StatusLogIntervalS  int

	// Links
	Transports     []string
	MQTTBroker     string
	MQTTClientID   string
	TopicIMU       string
	TopicCtrl      string
	WSListenAddr   string
	SerialPort     string
	SerialBaudRate int

	// Display
	DisplayEnabled        bool
	DisplayUpdateInterval int // milliseconds

	// Logging
	LogLevel  string
	LogFormat string
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	return &Config{
		DeviceName:            "SwingSense",
		I2CSpeedKHz:           400,
		IMUI2CAddr:            0x69,
		IMUWhoAmI:             0x11,
		RecordingPin:          "GPIO26",
		DebounceMS:            100,
		SamplePeriodMS:        25,
		IdlePollMS:            5,
		BusyPollMS:            1,
		StreamEnabledAtBoot:   true,
		StatusLogIntervalS:    10,
		Transports:            []string{TransportBLE},
		MQTTBroker:            "tcp://localhost:1883",
		MQTTClientID:          "swingsense-device",
		TopicIMU:              "swingsense/imu",
		TopicCtrl:             "swingsense/ctrl",
		WSListenAddr:          ":8080",
		SerialPort:            "/dev/serial0",
		SerialBaudRate:        115200,
		DisplayUpdateInterval: 250,
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

// Load reads the configuration file on top of Default.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines. Blank lines and lines starting with # are
// skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseIntRange(key, value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, v)
	}
	return v, nil
}

func parseBool(key, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	case "DEVICE_NAME":
		c.DeviceName = value

	// I2C and IMU
	case "I2C_BUS":
		c.I2CBus = value
	case "I2C_SPEED_KHZ":
		c.I2CSpeedKHz, err = parseIntRange(key, value, 10, 3400)
	case "IMU_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid IMU_I2C_ADDR %q: %w", value, perr)
		}
		if addr > 0x7F {
			return fmt.Errorf("IMU_I2C_ADDR must be a 7-bit address, got 0x%X", addr)
		}
		c.IMUI2CAddr = uint16(addr)
	case "IMU_WHO_AM_I":
		id, perr := strconv.ParseUint(value, 0, 8)
		if perr != nil {
			return fmt.Errorf("invalid IMU_WHO_AM_I %q: %w", value, perr)
		}
		c.IMUWhoAmI = byte(id)
	case "IMU_ACCEL_RANGE":
		rangeVal, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, perr)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_GYRO_RANGE":
		rangeVal, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("invalid IMU_GYRO_RANGE %q: %w", value, perr)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.IMUGyroRange = byte(rangeVal)

	// Recording switch
	case "RECORDING_PIN":
		c.RecordingPin = value
	case "DEBOUNCE_MS":
		c.DebounceMS, err = parseIntRange(key, value, 0, 10000)

	// Timing
	case "SAMPLE_PERIOD_MS":
		c.SamplePeriodMS, err = parseIntRange(key, value, 1, 10000)
	case "IDLE_POLL_MS":
		c.IdlePollMS, err = parseIntRange(key, value, 1, 1000)
	case "BUSY_POLL_MS":
		c.BusyPollMS, err = parseIntRange(key, value, 1, 1000)
	case "STREAM_ENABLED_AT_BOOT":
		c.StreamEnabledAtBoot, err = parseBool(key, value)
	case "STATUS_LOG_INTERVAL_S":
		c.StatusLogIntervalS, err = parseIntRange(key, value, 0, 86400)

	// Links
	case "TRANSPORTS":
		c.Transports = nil
		for _, t := range strings.Split(value, ",") {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				c.Transports = append(c.Transports, t)
			}
		}
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "TOPIC_IMU":
		c.TopicIMU = value
	case "TOPIC_CTRL":
		c.TopicCtrl = value
	case "WS_LISTEN_ADDR":
		c.WSListenAddr = value
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, perr)
		}
		c.SerialBaudRate = rate

	// Display
	case "DISPLAY_ENABLED":
		c.DisplayEnabled, err = parseBool(key, value)
	case "DISPLAY_UPDATE_INTERVAL_MS":
		c.DisplayUpdateInterval, err = parseIntRange(key, value, 10, 60000)

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = value
	case "LOG_FORMAT":
		c.LogFormat = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks cross-field constraints.
func (c *Config) validate() error {
	if c.DeviceName == "" {
		return fmt.Errorf("DEVICE_NAME is required")
	}
	if c.BusyPollMS >= c.SamplePeriodMS {
		return fmt.Errorf("BUSY_POLL_MS (%d) must be shorter than SAMPLE_PERIOD_MS (%d)", c.BusyPollMS, c.SamplePeriodMS)
	}
	if len(c.Transports) == 0 {
		return fmt.Errorf("TRANSPORTS must name at least one transport")
	}
	seen := map[string]bool{}
	for _, t := range c.Transports {
		switch t {
		case TransportBLE, TransportMQTT, TransportWS, TransportSerial:
		default:
			return fmt.Errorf("unknown transport %q in TRANSPORTS", t)
		}
		if seen[t] {
			return fmt.Errorf("transport %q listed twice in TRANSPORTS", t)
		}
		seen[t] = true
	}
	if seen[TransportMQTT] && (c.MQTTBroker == "" || c.TopicIMU == "") {
		return fmt.Errorf("MQTT_BROKER and TOPIC_IMU are required for the mqtt transport")
	}
	if seen[TransportWS] && c.WSListenAddr == "" {
		return fmt.Errorf("WS_LISTEN_ADDR is required for the ws transport")
	}
	if seen[TransportSerial] && (c.SerialPort == "" || c.SerialBaudRate <= 0) {
		return fmt.Errorf("SERIAL_PORT and SERIAL_BAUD_RATE are required for the serial transport")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (c *Config) SamplePeriod() time.Duration    { return ms(c.SamplePeriodMS) }
func (c *Config) IdlePoll() time.Duration        { return ms(c.IdlePollMS) }
func (c *Config) BusyPoll() time.Duration        { return ms(c.BusyPollMS) }
func (c *Config) Debounce() time.Duration        { return ms(c.DebounceMS) }
func (c *Config) DisplayInterval() time.Duration { return ms(c.DisplayUpdateInterval) }

// StatusLogInterval is zero when periodic status logging is off.
func (c *Config) StatusLogInterval() time.Duration {
	return time.Duration(c.StatusLogIntervalS) * time.Second
}

// InitGlobal initializes the global configuration from file. Only the first
// call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
