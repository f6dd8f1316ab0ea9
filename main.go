package main

import (
	"github.com/AzielCF/wa-relay/cmd"
)

func main() {
	cmd.Execute()
}
