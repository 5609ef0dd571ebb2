// Package main is the entry point for the smtp-send mail submission tool.
package main

import (
	"github.com/shineum/smtp-send-lite/cmd/smtp-send/commands"
)

func main() {
	commands.Execute()
}
