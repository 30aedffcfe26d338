package main

import (
	_ "github.com/eleven-am/roverlink/docs"
	"github.com/eleven-am/roverlink/internal/bootstrap"
)

// @title Roverlink API
// @version 1.0.0
// @description Camera, perception, autopilot and recording control for a UDP-driven rover

// @BasePath /v1

func main() {
	bootstrap.Run()
}
