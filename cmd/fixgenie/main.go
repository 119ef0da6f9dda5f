// The fixgenie command runs the incident intelligence service.
package main

import (
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/kart-io/fixgenie/internal/fixgenie"
)

func main() {
	if err := fixgenie.NewApp().Execute(); err != nil {
		os.Exit(1)
	}
}
