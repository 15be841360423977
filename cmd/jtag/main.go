package main

import "github.com/OpenTraceLab/jtagmaster/cmd/jtag/cmd"

func main() {
	cmd.Execute()
}
