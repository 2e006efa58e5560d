package main

import (
	"context"

	"trackscrape/cmd/trackscrape/commands"
	"trackscrape/lib/osutil"
)

func main() {
	ctx, cancel := osutil.SignalContext(context.Background())
	defer cancel()
	commands.ExecuteContext(ctx)
}
