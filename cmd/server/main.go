package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/credkeeper/internal/server"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
)

func main() {
	ctx := context.Background()

	app, err := server.NewApp(ctx, config.LoadConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, "credkeeper:", err)
		os.Exit(1)
	}

	app.Run(ctx)
}
