package main

import (
	"github.com/robotalks/chanmux/pkg/cli/sh"
	env "github.com/robotalks/chanmux/pkg/env/client"

	_ "github.com/robotalks/chanmux/pkg/cli/cmds/chanio"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
