package main

import (
	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/components/gripper"
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"

	"parol6"
)

func main() {
	module.ModularMain(
		resource.APIModel{API: arm.API, Model: parol6.ArmModel},
		resource.APIModel{API: gripper.API, Model: parol6.GripperModel},
	)
}
