package vive

import (
	"encoding/binary"

	"github.com/hmdkit/hmdkit/internal/buttons"
)

var controllerButtonMap = []buttons.MapEntry{
	{Mask: buttonBitTrigger, Button: buttons.Trigger},
	{Mask: buttonBitGrip, Button: buttons.Grip},
	{Mask: buttonBitMenu, Button: buttons.Menu},
	{Mask: buttonBitSystem, Button: buttons.System},
	{Mask: buttonBitThumb, Button: buttons.Thumb},
	{Mask: buttonBitTouch, Button: buttons.TouchThumb},
}

// decodeButtonReport diffs the wire mask against the previously seen
// state and emits transitions for the mapped bits. Idle battery status
// reports carry the battery byte with an all-zero button field; those
// are non-events and must not fake a mass release.
//
// data is the report payload without the leading report ID byte.
func (c *Controller) decodeButtonReport(data []byte) {
	mask := binary.LittleEndian.Uint32(data[0:4])
	battery := data[4]

	if battery != 0 && mask == 0 {
		return
	}

	if mask != c.buttons {
		if c.buttonSink != nil {
			buttons.Diff(c.name, c.buttons, mask, controllerButtonMap, c.buttonSink)
		}
		c.buttons = mask
	}
}
