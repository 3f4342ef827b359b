// Command carectl is the operator CLI for the campaign store. It works the
// review queue, prints UPI links and QR codes, lists donations and card
// orders, takes card donations against a running server and hashes admin
// passwords.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
