package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/candidly/backend/internal/app"
)

func main() {
	if err := app.Run(context.Background(), os.Args[1:]); err != nil {
		slog.Error("candidly exited", "command", firstArg(os.Args[1:]), "error", err)
		os.Exit(1)
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
