package main

import "github.com/OpenTraceLab/OpenTraceISP/cmd/avrisp/cmd"

func main() {
	cmd.Execute()
}
