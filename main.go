package main

import (
	"github.com/mensylisir/xmdriver/cmd"
)

func main() {
	cmd.Execute()
}
