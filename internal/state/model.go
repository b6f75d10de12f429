package state

// Emoji is one glyph placed on a composition. X and Y are relative to the
// composition center; Size is a point size and is always at least 1.
type Emoji struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Size int    `json:"size"`
}

// OpType names the kind of change applied to a composition. Engines report
// it to subscribers so they can tell edits apart.
type OpType string

const (
	OpAddEmoji      OpType = "add_emoji"
	OpMoveEmoji     OpType = "move_emoji"
	OpScaleEmoji    OpType = "scale_emoji"
	OpRemoveEmoji   OpType = "remove_emoji"
	OpSetBackground OpType = "set_background"
	OpReplace       OpType = "replace"
)

// Op describes a single applied change. IDs lists the emojis it touched.
type Op struct {
	Type OpType
	IDs  []int
}
