package main

import (
	"log"

	"github.com/synergypro/verifyd"
)

func main() {
	app, err := verifyd.New()
	if err != nil {
		log.Fatalf("failed to build verifyd: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("verifyd exited with error: %v", err)
	}
}
