package main

import "github.com/itsjmendez/adonde/cmd/adonde/cmd"

func main() {
	cmd.Execute()
}
