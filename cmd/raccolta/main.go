// Command raccolta runs the offline order collection agent.
package main

import (
	"context"
	"fmt"
	"os"

	"raccolta/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
