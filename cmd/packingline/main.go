package main

import "github.com/ppiankov/packingline/internal/cli"

func main() {
	cli.Execute()
}
