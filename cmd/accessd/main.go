// Command accessd runs the NTAG424 access-control core described in
// spec.md: the verifier pipeline and session FSM wired to a PC/SC reader,
// a cloud check-in endpoint, and a local usage sink.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
