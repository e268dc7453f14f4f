package main

import "github.com/easelhq/easel/cmd"

func main() {
	cmd.Execute()
}
