package main

import (
	"github.com/BioHazard786/Warpdrop/meet/cmd"
	"github.com/BioHazard786/Warpdrop/meet/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
