package main

import "github.com/qi7876/CaptionCheck/internal/cli"

func main() {
	cli.Main()
}
