package main

import "p2pmessage/internal/cli"

// set build metadata
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cli.Execute(version, commit)
}
