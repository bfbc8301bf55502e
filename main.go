package main

import (
	"netspeed-daemon/internal/cli"
)

func main() {
	cli.Execute()
}
