package main

import "checkup/cmd"

func main() {
	cmd.Execute()
}
