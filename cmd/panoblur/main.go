package main

import "github.com/MeKo-Tech/panoblur/cmd/panoblur/cmd"

func main() {
	cmd.Execute()
}
