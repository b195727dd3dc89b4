package main

import (
	cmd "github.com/zxia545/sample-book-questions-gen-and-eval/cmd/bookeval"
)

func main() {
	cmd.Execute()
}
