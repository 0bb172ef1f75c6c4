package main

import "poe-trade-archive/internal/cli"

func main() {
	cli.Execute()
}
