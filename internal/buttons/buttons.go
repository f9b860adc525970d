// Package buttons turns wire-format button bitmasks into discrete
// press/release transitions for logical controls.
package buttons

// Button identifies a logical input control independent of any wire
// format.
type Button int

const (
	Trigger Button = iota
	Grip
	Menu
	System
	Thumb
	TouchThumb
	Up
	Down
	Left
	Right
	OK
	VolumeUp
	VolumeDown
	Home
)

var names = map[Button]string{
	Trigger:    "trigger",
	Grip:       "grip",
	Menu:       "menu",
	System:     "system",
	Thumb:      "thumb",
	TouchThumb: "touch-thumb",
	Up:         "up",
	Down:       "down",
	Left:       "left",
	Right:      "right",
	OK:         "ok",
	VolumeUp:   "volume-up",
	VolumeDown: "volume-down",
	Home:       "home",
}

func (b Button) String() string {
	if s, ok := names[b]; ok {
		return s
	}
	return "unknown"
}

// Event is a single press or release transition on one device.
type Event struct {
	Device  string
	Button  Button
	Pressed bool
}

// Sink consumes button transitions; an input-event subsystem or test
// recorder implements it.
type Sink interface {
	HandleButtonEvent(e Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(e Event)

func (f SinkFunc) HandleButtonEvent(e Event) { f(e) }

// MapEntry ties one wire bit to a logical button. Bits not present in
// a device's map never produce events.
type MapEntry struct {
	Mask   uint32
	Button Button
}

// Diff compares two wire masks bit by bit through the mapping table and
// emits one event per mapped bit that changed. Unchanged masks emit
// nothing.
func Diff(device string, old, cur uint32, table []MapEntry, sink Sink) {
	changed := old ^ cur
	if changed == 0 {
		return
	}

	for _, entry := range table {
		if changed&entry.Mask == 0 {
			continue
		}
		sink.HandleButtonEvent(Event{
			Device:  device,
			Button:  entry.Button,
			Pressed: cur&entry.Mask != 0,
		})
	}
}
