package main

import "github.com/notargets/feaingest/cmd"

func main() {
	cmd.Execute()
}
