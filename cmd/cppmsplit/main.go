// # cmd/cppmsplit/main.go
package main

import (
	"cppmsplit/internal/ui/cli"
	"os"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
