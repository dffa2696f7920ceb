package main

import "github.com/mfi-tools/mpowerctl/cmd"

func main() {
	cmd.Execute()
}
