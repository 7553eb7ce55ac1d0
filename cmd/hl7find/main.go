package main

import "github.com/agentic-research/hl7find/cmd"

func main() {
	cmd.Execute()
}
