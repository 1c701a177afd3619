// Command sdg generates evolved synthetic questions from a document.
package main

import (
	"fmt"
	"os"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
