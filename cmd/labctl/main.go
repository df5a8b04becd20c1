// cmd/labctl/main.go
package main

import (
	"fmt"
	"os"

	"instrument-service/cmd/labctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
