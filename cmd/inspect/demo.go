package main

import (
	"reflect"

	"github.com/wippyai/field-injector/bridge"
)

type Layer int32

const (
	LayerDefault Layer = iota
	LayerUI
	LayerWater
)

type Vector3 struct {
	X, Y, Z float32
}

type Quaternion struct {
	X, Y, Z, W float32
}

type Bounds struct {
	Center  Vector3
	Extents Vector3
}

type Component struct {
	bridge.Object
	Enabled bool
	Tag     string
}

type Transform struct {
	Component
	Position Vector3
	Rotation Quaternion
	Scale    Vector3
	Layer    Layer
	Parent   *Transform
	Children bridge.List[*Transform]
}

type ItemStack struct {
	ID    int32
	Count int16
	Name  string
}

type Inventory struct {
	Component
	Owner    string
	Slots    []ItemStack
	Capacity int32
	Weights  []float32
	Area     Bounds
	Cache    map[string]int32
}

var (
	typeOfTransform = reflect.TypeOf(Transform{})
	typeOfBounds    = reflect.TypeOf(Bounds{})
)

// demoTypes are injected in one batch. Their bases, nested structs and
// referenced classes are discovered from them.
var demoTypes = []reflect.Type{
	typeOfTransform,
	reflect.TypeOf(Inventory{}),
	typeOfBounds,
}

func sampleTransform() *Transform {
	return &Transform{
		Component: Component{Enabled: true, Tag: "Player"},
		Position:  Vector3{1, 2, 3},
		Rotation:  Quaternion{W: 1},
		Scale:     Vector3{1, 1, 1},
		Layer:     LayerUI,
	}
}
