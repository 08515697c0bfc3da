package main

import "github.com/forPelevin/adscribe/internal/cli"

func main() {
	cli.Main()
}
