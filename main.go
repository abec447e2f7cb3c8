package main

import (
	"os"

	"github.com/smazurov/streamcast/cmd"
)

func main() {
	root := cmd.CreatePublishCmd()
	root.AddCommand(cmd.VersionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
