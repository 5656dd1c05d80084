// cmd/playcord/main.go
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/keshon/playcord/internal/di"
	"github.com/keshon/playcord/internal/logger"
)

func main() {
	injector := di.NewContainer()

	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "[ERR] failed to start playcord: %v\n", err)
		injector.Shutdown()
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)
	log.Info().Msg("✅ playcord is running, press Ctrl+C to exit")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info().Str("signal", s.String()).Msg("shutdown signal received, cleaning up")

	if report := injector.Shutdown(); report != nil && !report.Succeed {
		fmt.Fprintf(os.Stderr, "[ERR] shutdown errors:\n%s\n", report.Error())
		os.Exit(1)
	}
	fmt.Println("[INFO] playcord exited cleanly")
}
