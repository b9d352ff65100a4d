package pump

// Display is the 4-digit 7-segment collaborator. Rendering primitives live
// in the driver; the controller only decides what to show.
type Display interface {
	// Show renders up to 4 characters of text.
	Show(text string) error
	// Number renders an integer right-justified.
	Number(n int) error
	// Brightness sets the display brightness, 0 (dim) to 7 (full).
	Brightness(level int) error
	// Encode returns the raw segment bytes for text, one byte per
	// character, without writing them.
	Encode(text string) []byte
	// Write places raw segment bytes directly, left to right. Used to
	// compose the run animation with encoded digits.
	Write(segments []byte) error
}

// autoAnimation is the 8-frame figure-8 glyph cycled in the leftmost digit
// while auto-pumping: segments a,b,g,e,d,c,g,f.
var autoAnimation = []byte{
	0b00000001,
	0b00000010,
	0b01000000,
	0b00010000,
	0b00001000,
	0b00000100,
	0b01000000,
	0b00100000,
}

const (
	brightnessFull = 7
	brightnessDim  = 2
)
