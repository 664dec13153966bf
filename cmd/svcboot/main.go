// Command svcboot loads a compiled service plugin, provisions its resources
// and serves it on an address.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "svcboot:", err)
		os.Exit(1)
	}
}
