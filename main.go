package main

import "mangashelf/internal/cli"

func main() {
	cli.Execute()
}
