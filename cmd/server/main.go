package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"snake-arena/server/internal/app"
	"snake-arena/server/internal/settings"
)

func main() {
	env, err := settings.LoadEnv()
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		// Restore default handling so a second signal kills a stuck shutdown.
		stop()
	}()

	if err := app.Run(ctx, app.Config{Env: env}); err != nil {
		log.Fatalf("%v", err)
	}
}
