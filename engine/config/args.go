package config

import (
	"strconv"
	"strings"
)

// ApplyArgs overrides c with recognized command line flags. Unknown flags
// are ignored and malformed values leave the current value in place.
//
//	-w, --width N      client width
//	-h, --height N     client height
//	-warp, --warp      software rasterizing adapter
//	--headless         no window, in-process software device
//	--frames N         stop after N frames
//	--buffers N        back buffer count
//	--vsync, --novsync
//	--fullscreen
//	--log-level L
//	--config PATH      configuration file (read by Load)
func ApplyArgs(c *Config, args []string) {
	for i := 0; i < len(args); i++ {
		name, value, inline := splitFlag(args[i])

		// value returns the flag argument, consuming the next element
		// when it was not given inline. A following flag is never taken
		// as a value.
		next := func() (string, bool) {
			if inline {
				return value, true
			}
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
				return args[i], true
			}
			return "", false
		}

		switch name {
		case "-w", "--width":
			if v, ok := next(); ok {
				c.Window.Width = parseUint32(v, c.Window.Width)
			}
		case "-h", "--height":
			if v, ok := next(); ok {
				c.Window.Height = parseUint32(v, c.Window.Height)
			}
		case "-warp", "--warp":
			c.Renderer.UseWarp = true
		case "--headless":
			c.Renderer.Headless = true
		case "--frames":
			if v, ok := next(); ok {
				if n, err := strconv.ParseUint(v, 10, 64); err == nil {
					c.Renderer.Frames = n
				}
			}
		case "--buffers":
			if v, ok := next(); ok {
				c.Renderer.BufferCount = parseUint32(v, c.Renderer.BufferCount)
			}
		case "--vsync":
			c.Renderer.VSync = true
		case "--novsync":
			c.Renderer.VSync = false
		case "--fullscreen":
			c.Window.Fullscreen = true
		case "--log-level":
			if v, ok := next(); ok {
				c.Log.Level = v
			}
		case "--config":
			// consumed by Load
			next()
		}
	}
}

func configPath(args []string) (string, bool) {
	for i := 0; i < len(args); i++ {
		name, value, inline := splitFlag(args[i])
		if name != "--config" {
			continue
		}
		if inline {
			return value, true
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			return args[i+1], true
		}
	}
	return DefaultPath, false
}

func splitFlag(arg string) (name, value string, inline bool) {
	if !strings.HasPrefix(arg, "--") {
		return arg, "", false
	}
	name, value, inline = strings.Cut(arg, "=")
	return name, value, inline
}

// parseUint32 returns fallback for malformed or zero values.
func parseUint32(s string, fallback uint32) uint32 {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || n == 0 {
		return fallback
	}
	return uint32(n)
}
