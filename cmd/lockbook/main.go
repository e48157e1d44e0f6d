// Command lockbook is the client CLI for a Lockbook account: an
// end-to-end encrypted file tree synced against a Lockbook server.
package main

import "github.com/lockbook/lockbook-core/cmd/lockbook/commands"

func main() {
	if err := commands.Execute(); err != nil {
		commands.Exit(err)
	}
}
