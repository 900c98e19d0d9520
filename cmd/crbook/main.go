package main

import "github.com/MeKo-Tech/crbook/cmd/crbook/cmd"

func main() {
	cmd.Execute()
}
