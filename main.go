package main

import (
	"log"

	"github.com/deliverytrack/engine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
