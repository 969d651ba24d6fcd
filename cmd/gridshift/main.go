package main

import (
	"fmt"
	"os"

	"github.com/gridshift-project/gridshift/pkg/logger"
)

func main() {
	logger.Configure()
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
