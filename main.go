package main

import "github.com/sawit-ai/go-grading/cmd"

func main() {
	cmd.Execute()
}
