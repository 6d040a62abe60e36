package main

import (
	cmd "github.com/udem-taln/nerbridge/cmd/nerbridge"
	"github.com/udem-taln/nerbridge/internal"
)

var log = internal.GetLogger()

func main() {
	log.Debug("Starting nerbridge")
	cmd.Execute()
}
