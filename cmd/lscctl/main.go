package main

import (
	"fmt"
	"os"

	"github.com/IlyasAtabaev731/lsc-coin/internal/cli"
)

func main() {
	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
