// Package fieldmap pins the positional field layout of the ThingSpeak
// channel feed. The layout is a configuration contract with the sensor
// firmware: firmware writes each value into a numbered channel field, and
// this table is the only place the assignment is recorded. An earlier
// firmware revision used a flame-first order; current boards write
// temperature first, and that order is canonical here.
package fieldmap

import "fmt"

// Field positions as written by the sensor firmware.
const (
	Temperature = 1
	Humidity    = 2
	Flame       = 3
	Gas         = 4
	PIR         = 5
)

// Key returns the feed JSON key for a field position, e.g. Key(3) == "field3".
func Key(pos int) string {
	return fmt.Sprintf("field%d", pos)
}
