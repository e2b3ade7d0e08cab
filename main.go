package main

import "github.com/whetherapp/whether-backend/internal/cli"

func main() {
	cli.Execute()
}
