package main

import "github.com/jsign/vm-gas-calibration/cmd"

func main() {
	cmd.Execute()
}
