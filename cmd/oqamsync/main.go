// Command oqamsync runs the OFDM/OQAM frame synchronizer against simulated
// frames or a stereo I/Q sound card.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
