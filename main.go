package main

import "github.com/NForce-ai/sdrbot/cmd"

func main() {
	cmd.Execute()
}
