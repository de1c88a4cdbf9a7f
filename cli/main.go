package main

import "github.com/ponyo877/livedeck/cli/cmd"

func main() {
	cmd.Execute()
}
