package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/blackwell-systems/cartrules/internal/app"
)

func main() {
	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if strings.Contains(err.Error(), "unknown command") {
			fmt.Fprintln(os.Stderr, "Run 'cartrules --help' for usage.")
		}
		os.Exit(1)
	}
}
