package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/doeshing/li/internal/infrastructure/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, cli.Options{
		Args:    os.Args[1:],
		Verbose: isVerbose(),
	})
	stop()
	os.Exit(code)
}

func isVerbose() bool {
	v := os.Getenv("LI_DEBUG")
	return v == "1" || strings.EqualFold(v, "true")
}
