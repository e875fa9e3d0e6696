package main

import (
	"os"

	"github.com/josephlewis42/andpipe/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
