package main

import "chordring/cmd"

func main() {
	cmd.Execute()
}
