package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/cadence/engine/core"
)

// DefaultPath is read when present and no --config flag is given.
const DefaultPath = "cadence.toml"

const (
	DefaultWidth       uint32 = 1280
	DefaultHeight      uint32 = 720
	DefaultBufferCount uint32 = 3

	minBufferCount uint32 = 2
	maxBufferCount uint32 = 16
)

type WindowConfig struct {
	Title      string `toml:"title"`
	StartPosX  int32  `toml:"x"`
	StartPosY  int32  `toml:"y"`
	Width      uint32 `toml:"width"`
	Height     uint32 `toml:"height"`
	Fullscreen bool   `toml:"fullscreen"`
}

type RendererConfig struct {
	// UseWarp selects a software rasterizing adapter.
	UseWarp bool `toml:"warp"`
	// Headless renders on the in-process software device without a window.
	Headless bool `toml:"headless"`
	// Frames stops the run after that many frames, 0 runs until quit.
	Frames      uint64     `toml:"frames"`
	BufferCount uint32     `toml:"buffers"`
	VSync       bool       `toml:"vsync"`
	ClearColor  [3]float32 `toml:"clear_color"`
	Validation  bool       `toml:"validation"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Log      LogConfig      `toml:"log"`

	// Path is the file the configuration was read from, empty if none.
	Path string `toml:"-"`
}

func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:     "Cadence",
			StartPosX: 100,
			StartPosY: 100,
			Width:     DefaultWidth,
			Height:    DefaultHeight,
		},
		Renderer: RendererConfig{
			BufferCount: DefaultBufferCount,
			VSync:       true,
			ClearColor:  [3]float32{0.0, 0.2, 0.9},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, the configuration file and
// finally the command line, each overriding the previous.
func Load(args []string) (*Config, error) {
	c := Default()

	path, explicit := configPath(args)
	if err := c.merge(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	ApplyArgs(c, args)
	c.normalize()
	return c, nil
}

// merge decodes the file at path over c.
func (c *Config) merge(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(data, c); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("config %s:%d:%d: %w", path, row, col, err)
		}
		return fmt.Errorf("config %s: %w", path, err)
	}
	c.Path = path
	return nil
}

func (c *Config) normalize() {
	if c.Window.Width == 0 {
		c.Window.Width = DefaultWidth
	}
	if c.Window.Height == 0 {
		c.Window.Height = DefaultHeight
	}
	if c.Renderer.BufferCount == 0 {
		c.Renderer.BufferCount = DefaultBufferCount
	}
	c.Renderer.BufferCount = core.Clamp(c.Renderer.BufferCount, minBufferCount, maxBufferCount)
	for i := range c.Renderer.ClearColor {
		c.Renderer.ClearColor[i] = core.Clamp(c.Renderer.ClearColor[i], 0, 1)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
