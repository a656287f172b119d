package main

import (
	"github.com/MeKo-Tech/lensmap/cmd/lensmap/cmd"
)

func main() {
	cmd.Execute()
}
