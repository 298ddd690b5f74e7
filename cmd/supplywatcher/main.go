package main

import "supplywatcher/internal/cli"

func main() {
	cli.Execute()
}
