package main

import "bloomdispatch/cmd"

func main() {
	cmd.Execute()
}
