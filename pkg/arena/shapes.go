// Hand-written table of the shapes that `make_shapes.sh shapes.go 49` would
// produce; the script itself is not part of this repository.

package arena

import "reflect"

// shapes caches the reflect.Type for each power-of-two-sized allocation
// shape used by allocTraceable, indexed by log2(size). Building these once
// avoids a reflect.StructOf call (and the type-map lookup inside it) on
// every arena growth.
var shapes = [49]reflect.Type{
	shapeOf(1 << 0), shapeOf(1 << 1), shapeOf(1 << 2), shapeOf(1 << 3),
	shapeOf(1 << 4), shapeOf(1 << 5), shapeOf(1 << 6), shapeOf(1 << 7),
	shapeOf(1 << 8), shapeOf(1 << 9), shapeOf(1 << 10), shapeOf(1 << 11),
	shapeOf(1 << 12), shapeOf(1 << 13), shapeOf(1 << 14), shapeOf(1 << 15),
	shapeOf(1 << 16), shapeOf(1 << 17), shapeOf(1 << 18), shapeOf(1 << 19),
	shapeOf(1 << 20), shapeOf(1 << 21), shapeOf(1 << 22), shapeOf(1 << 23),
	shapeOf(1 << 24), shapeOf(1 << 25), shapeOf(1 << 26), shapeOf(1 << 27),
	shapeOf(1 << 28), shapeOf(1 << 29), shapeOf(1 << 30), shapeOf(1 << 31),
	shapeOf(1 << 32), shapeOf(1 << 33), shapeOf(1 << 34), shapeOf(1 << 35),
	shapeOf(1 << 36), shapeOf(1 << 37), shapeOf(1 << 38), shapeOf(1 << 39),
	shapeOf(1 << 40), shapeOf(1 << 41), shapeOf(1 << 42), shapeOf(1 << 43),
	shapeOf(1 << 44), shapeOf(1 << 45), shapeOf(1 << 46), shapeOf(1 << 47),
	shapeOf(1 << 48),
}

func shapeOf(size int) reflect.Type {
	return reflect.StructOf([]reflect.StructField{
		{Name: "Data", Type: reflect.ArrayOf(size, reflect.TypeFor[byte]())},
		{Name: "Arena", Type: reflect.TypeFor[*Arena]()},
	})
}
