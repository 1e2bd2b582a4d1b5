package main

import "github.com/glimps-re/autovt/cmd/cli"

func main() {
	cli.Main()
}
