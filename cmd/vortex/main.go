package main

import "github.com/vortexsim/vortex/cmd/vortex/cmd"

func main() {
	cmd.Execute()
}
