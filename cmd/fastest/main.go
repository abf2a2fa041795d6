// Command fastest runs YAML UI scripts against an Appium-compatible server.
package main

import "github.com/devicelab-dev/fastest-runner/pkg/cli"

func main() {
	cli.Execute()
}
