package main

import (
	"github.com/aipm-toolkit/aipmctl/cmd"
)

var (
	version string
	commit  string
	date    string
)

func main() {
	cmd.Execute(version, commit, date)
}
