package main

import "github.com/shehryarbajwa/saucedemo-e2e/internal/cli"

func main() {
	cli.Execute()
}
