package main

import "github.com/tsawler/dialogtrain/cli"

func main() {
	cli.Execute()
}
