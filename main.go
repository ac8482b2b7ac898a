package main

import "github.com/audiolibrelab/audiocast/cmd"

func main() {
	cmd.Execute()
}
