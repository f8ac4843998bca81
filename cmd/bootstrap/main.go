package main

import "github.com/oshokin/runtime-bootstrap/cmd/bootstrap/cmd"

func main() {
	cmd.Execute()
}
