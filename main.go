package main

import (
	"log"
	"os"

	"mediapipe/cmd"
	"mediapipe/config"
)

func main() {
	if err := cmd.StartWebServer(config.GetPort()); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}
