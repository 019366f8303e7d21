package main

import (
	"os"

	"github.com/razornet-sec/smartlist/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
