package main

import (
	"fmt"
	"os"

	"github.com/consensus-shipyard/ipc-sub004/cmd/ipcgw/launcher"
)

func main() {

	// Launch blocks until the gateway is interrupted or fails to start.
	if err := launcher.Launch(os.Args); err != nil {

		// Report the issue so the operator sees it even without a log sink
		fmt.Fprintln(os.Stderr, "Error:", err)

		os.Exit(1)
	}

}
