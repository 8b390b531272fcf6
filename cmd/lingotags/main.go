package main

import "lingotags/internal/cli"

func main() {
	cli.Execute()
}
