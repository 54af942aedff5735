package main

import "github.com/oshokin/ghd/cmd/ghd/cmd"

func main() {
	cmd.Execute()
}
