package main

import (
	"os"

	"lab-quiz-player/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
