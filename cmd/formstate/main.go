// Command formstate fills in and validates declarative forms from the
// terminal.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd(newApp()).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
