package main

import "github.com/devicelab-dev/appui-runner/pkg/cli"

func main() {
	cli.Execute()
}
