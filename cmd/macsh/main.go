package main

import (
	"github.com/robotalks/netapi/pkg/cli/sh"
	"github.com/robotalks/netapi/pkg/env"

	_ "github.com/robotalks/netapi/pkg/cli/cmds/mac"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
