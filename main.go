package main

import "radiovespa/cmd"

func main() {
	cmd.Execute()
}
