package main

import (
	"context"
	"os"
)

func main() {
	runner := NewRunner(RunnerOpts{})

	if err := newApp(runner).Run(context.Background(), os.Args); err != nil {
		runner.logger.Fatalf("%v", err)
	}
}
