package main

import "github.com/cmmoran/cxxffigen/cmd"

func main() {
	cmd.Execute()
}
