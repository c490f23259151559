package main

import "github.com/avelkov/corpus-qa/cmd/evalctl/cmd"

func main() {
	cmd.Execute()
}
