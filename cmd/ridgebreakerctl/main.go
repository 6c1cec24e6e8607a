// ridgebreakerctl is the operator CLI client for the ridgebreaker daemon's
// JSON control API (spec §6 "Control channel").
package main

import "github.com/ridgebreaker/ridgebreaker/cmd/ridgebreakerctl/commands"

func main() {
	commands.Execute()
}
