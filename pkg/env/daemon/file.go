package daemon

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/chanmux/pkg/chanmux"
)

// File is the YAML channels file, e.g.
//
//	name: arm
//	transport: file:///dev/ttyUSB0
//	stagingSize: 2KB
//	watermark: 75
//	channels:
//	  - id: 1
//	  - id: 2
//	    rxSize: 16KB
type File struct {
	Name         string            `yaml:"name"`
	Transport    string            `yaml:"transport"`
	StagingSize  datasize.ByteSize `yaml:"stagingSize"`
	Watermark    int               `yaml:"watermark"`
	MaxPayload   datasize.ByteSize `yaml:"maxPayload"`
	DataportSize datasize.ByteSize `yaml:"dataportSize"`
	RxSize       datasize.ByteSize `yaml:"rxSize"`
	Channels     []FileChannel     `yaml:"channels"`
}

// FileChannel is a channel entry of File.
type FileChannel struct {
	ID     uint8             `yaml:"id"`
	RxSize datasize.ByteSize `yaml:"rxSize"`
}

// LoadFile parses a channels file.
func LoadFile(fn string) (*File, error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %v", fn, err)
	}
	return &f, nil
}

// ApplyTo overrides config values with the ones present in the file.
func (f *File) ApplyTo(c *Config) {
	if f.Name != "" {
		c.Name = f.Name
	}
	if f.Transport != "" {
		c.TransportURL = f.Transport
	}
	sizes := []struct {
		from datasize.ByteSize
		to   *datasize.ByteSize
	}{
		{f.StagingSize, &c.StagingSize},
		{f.MaxPayload, &c.MaxPayload},
		{f.DataportSize, &c.DataportSize},
		{f.RxSize, &c.RxSize},
	}
	for _, size := range sizes {
		if size.from != 0 {
			*size.to = size.from
		}
	}
	if f.Watermark != 0 {
		c.WatermarkPercent = f.Watermark
	}
	if len(f.Channels) == 0 {
		return
	}
	ids := make([]string, len(f.Channels))
	c.rxSizes = make(map[chanmux.ChannelID]int)
	for n, ch := range f.Channels {
		ids[n] = strconv.Itoa(int(ch.ID))
		if ch.RxSize != 0 {
			c.rxSizes[chanmux.ChannelID(ch.ID)] = int(ch.RxSize.Bytes())
		}
	}
	c.Channels = strings.Join(ids, ",")
}
