package main

import "github.com/audiolibrelab/funnyvoice/cmd"

func main() {
	cmd.Execute()
}
