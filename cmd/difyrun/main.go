package main

import "github.com/vietddude/difyrun/internal/cli"

func main() {
	cli.Execute()
}
