package main

import "github.com/BioHazard786/Warprun/cmd"

func main() {
	cmd.Execute()
}
