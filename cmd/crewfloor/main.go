package main

import "github.com/okatz/crewfloor/internal/cli"

func main() {
	cli.Execute()
}
