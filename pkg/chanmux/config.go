package chanmux

import (
	"fmt"
	"io"

	"github.com/robotalks/chanmux/pkg/dataport"
)

// Default sizes.
const (
	DefaultStagingSize      = 2048 // value found from testing
	DefaultWatermarkPercent = 75
	DefaultMaxPayload       = 4096
	DefaultDataportSize     = 4096
	DefaultRxSize           = 4096
)

// ChannelConfig configures one channel.
type ChannelConfig struct {
	ID ChannelID
	// RxSize is the receive buffer size; 0 uses Config.RxSize.
	RxSize int
}

// Config defines the construction parameters. Zero sizes take defaults.
type Config struct {
	Channels         []ChannelConfig
	StagingSize      int
	WatermarkPercent int
	MaxPayload       int
	DataportSize     int
	RxSize           int
	Metrics          *Metrics
}

// Lower is the transport beneath the multiplexer.
type Lower struct {
	// Inlet receives the raw multiplexed bytes. Its signal is the
	// data-available event the drain worker waits on.
	Inlet *dataport.Inlet
	// Writer accepts encoded frames.
	Writer io.Writer
}

func (c *Config) withDefaults() Config {
	conf := *c
	if conf.StagingSize == 0 {
		conf.StagingSize = DefaultStagingSize
	}
	if conf.WatermarkPercent == 0 {
		conf.WatermarkPercent = DefaultWatermarkPercent
	}
	if conf.MaxPayload == 0 {
		conf.MaxPayload = DefaultMaxPayload
	}
	if conf.DataportSize == 0 {
		conf.DataportSize = DefaultDataportSize
	}
	if conf.RxSize == 0 {
		conf.RxSize = DefaultRxSize
	}
	return conf
}

func (c *Config) validate(lower Lower) error {
	if len(c.Channels) == 0 {
		return &ConfigError{Field: "channels", Reason: "at least one channel is required"}
	}
	seen := make(map[ChannelID]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if seen[ch.ID] {
			return &ConfigError{Field: "channels", Reason: fmt.Sprintf("duplicated channel %d", ch.ID)}
		}
		seen[ch.ID] = true
		if ch.RxSize < 0 {
			return &ConfigError{Field: "channels", Reason: fmt.Sprintf("negative rx size for channel %d", ch.ID)}
		}
	}
	switch {
	case c.StagingSize < 0:
		return &ConfigError{Field: "staging size", Reason: "must be positive"}
	case c.WatermarkPercent < 0 || c.WatermarkPercent >= 100:
		return &ConfigError{Field: "watermark", Reason: "must be within 1-99 percent"}
	case c.MaxPayload < 0 || c.MaxPayload > MaxPayloadLimit:
		return &ConfigError{Field: "max payload", Reason: fmt.Sprintf("must be within 1-%d", MaxPayloadLimit)}
	case c.DataportSize < 0:
		return &ConfigError{Field: "dataport size", Reason: "must be positive"}
	case c.RxSize < 0:
		return &ConfigError{Field: "rx size", Reason: "must be positive"}
	case lower.Inlet == nil:
		return &ConfigError{Field: "lower", Reason: "inlet is required"}
	case lower.Inlet.Signal() == nil:
		return &ConfigError{Field: "lower", Reason: "inlet has no signal"}
	case lower.Writer == nil:
		return &ConfigError{Field: "lower", Reason: "writer is required"}
	}
	return nil
}
