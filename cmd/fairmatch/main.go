package main

import "github.com/mcoot/fairmatch/internal/cli"

func main() {
	cli.Execute()
}
