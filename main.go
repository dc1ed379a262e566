package main

import "github.com/kozaktomas/emotion-sense/cmd"

func main() {
	cmd.Execute()
}
