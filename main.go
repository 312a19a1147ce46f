package main

import (
	"context"
	"time"

	"presenter-fw/app"
	"presenter-fw/platform"
	"presenter-fw/services/config"
	"presenter-fw/x/logx"
)

var log = logx.New("main")

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)

	profile, err := config.Load(platform.BoardID)
	if err != nil {
		log.Error("profile", "err", err)
		halt()
	}
	board, err := platform.Setup(profile)
	if err != nil {
		log.Error("board setup", "err", err)
		halt()
	}
	a, err := app.New(board, profile)
	if err != nil {
		log.Error("app", "err", err)
		halt()
	}
	if err := a.Run(context.Background()); err != nil {
		log.Error("run", "err", err)
	}
	halt()
}

// halt parks the main goroutine. With the watchdog running the device
// resets; without it, logs stay readable.
func halt() {
	select {}
}
