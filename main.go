/*
Cadence renders a clear-color animation through the command queue and
frame presentation layers. Run with --headless to use the in-process
software device, or --warp to prefer a CPU Vulkan adapter.
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/cadence/engine"
	"github.com/spaghettifunk/cadence/engine/config"
	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/testbed"
)

func main() {
	args := os.Args[1:]
	cfg, err := config.Load(args)
	if err != nil {
		core.LogFatal("failed to load configuration: %s", err)
	}

	tb := testbed.NewTestGame()

	e, err := engine.New(cfg, args, tb.Game)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("failed to initialize: %s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// stop the frame loop; the main goroutine owns the window and shuts down
	go func() {
		<-sigCh
		e.Quit()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogFatal(runErr.Error())
	}
}
