package main

import (
	_ "time/tzdata"

	"checkin-gate/internal/cli"
)

func main() {
	cli.Execute()
}
