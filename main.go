package main

import "go.sirus.dev/p2p-comm/duochat/cmd"

func main() {
	cmd.Execute()
}
