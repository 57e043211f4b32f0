package main

import "github.com/patchdance/patchdance/cmd"

func main() {
	cmd.Execute()
}
