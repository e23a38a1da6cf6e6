// Command formstate loads a form definition and its process rules, and
// computes, validates and explains the state of the form for a given
// evaluation context.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
