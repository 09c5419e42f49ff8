package command

import "vidpipe/internal/queue"

// edgeMargin is the inset in pixels from the frame edge.
const edgeMargin = "10"

type anchor struct {
	x string
	y string
}

// Text anchors use drawtext's frame (w, h) and rendered text (tw, th) sizes.
var textAnchors = map[queue.Position]anchor{
	queue.PositionTopLeft:     {edgeMargin, edgeMargin},
	queue.PositionTopRight:    {"w-tw-" + edgeMargin, edgeMargin},
	queue.PositionBottomLeft:  {edgeMargin, "h-th-" + edgeMargin},
	queue.PositionBottomRight: {"w-tw-" + edgeMargin, "h-th-" + edgeMargin},
	queue.PositionCenter:      {"(w-tw)/2", "(h-th)/2"},
}

// Media anchors use the overlay filter's main (W, H) and overlay (w, h) sizes.
var mediaAnchors = map[queue.Position]anchor{
	queue.PositionTopLeft:     {edgeMargin, edgeMargin},
	queue.PositionTopRight:    {"W-w-" + edgeMargin, edgeMargin},
	queue.PositionBottomLeft:  {edgeMargin, "H-h-" + edgeMargin},
	queue.PositionBottomRight: {"W-w-" + edgeMargin, "H-h-" + edgeMargin},
	queue.PositionCenter:      {"(W-w)/2", "(H-h)/2"},
}

// TextCoordinates returns the drawtext x/y expressions for position.
func TextCoordinates(position queue.Position) (x, y string, ok bool) {
	a, ok := textAnchors[position]
	return a.x, a.y, ok
}

// MediaCoordinates returns the overlay filter x/y expressions for position.
func MediaCoordinates(position queue.Position) (x, y string, ok bool) {
	a, ok := mediaAnchors[position]
	return a.x, a.y, ok
}
