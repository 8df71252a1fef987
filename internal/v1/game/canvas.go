package game

// MaxCanvasOps bounds the in-memory canvas log for one turn.
const MaxCanvasOps = 4000

// MaxStrokePoints is the largest point batch rebroadcast in one stroke;
// longer strokes are split before appending.
const MaxStrokePoints = 64

// CanvasLog is the ordered, authoritative sequence of drawing operations for
// the current turn. Owned by the room's consumer goroutine.
type CanvasLog struct {
	ops []DrawOp
}

// Append validates and stores ops derived from one inbound draw_op,
// splitting oversized strokes into batches of at most MaxStrokePoints.
// Returns the stored ops, which are what gets rebroadcast.
func (c *CanvasLog) Append(op DrawOp) []DrawOp {
	var stored []DrawOp
	if op.Kind == OpStroke && len(op.Points) > MaxStrokePoints {
		for start := 0; start < len(op.Points); start += MaxStrokePoints {
			end := start + MaxStrokePoints
			if end > len(op.Points) {
				end = len(op.Points)
			}
			part := op
			part.Points = op.Points[start:end]
			stored = append(stored, part)
		}
	} else {
		stored = []DrawOp{op}
	}

	c.ops = append(c.ops, stored...)
	if len(c.ops) > MaxCanvasOps {
		// Keep the tail; late joiners replay only what fits.
		c.ops = c.ops[len(c.ops)-MaxCanvasOps:]
	}
	return stored
}

// Undo removes the most recent stroke or bucket_fill issued by drawer.
// Other players' ops and non-drawable ops are untouched. Returns whether
// anything was removed.
func (c *CanvasLog) Undo(drawer UserID) bool {
	for i := len(c.ops) - 1; i >= 0; i-- {
		op := c.ops[i]
		if op.UserID != drawer {
			continue
		}
		if op.Kind != OpStroke && op.Kind != OpBucketFill {
			continue
		}
		c.ops = append(c.ops[:i], c.ops[i+1:]...)
		return true
	}
	return false
}

// Clear empties the log.
func (c *CanvasLog) Clear() {
	c.ops = nil
}

// Ops returns the current log for replay to a joining or reconnecting player.
func (c *CanvasLog) Ops() []DrawOp {
	return c.ops
}

// Len reports the number of stored ops.
func (c *CanvasLog) Len() int {
	return len(c.ops)
}

// ValidateDrawOp checks the domains of one client-supplied op.
func ValidateDrawOp(op DrawOp) error {
	switch op.Kind {
	case OpStroke:
		if op.Tool != ToolPen && op.Tool != ToolEraser {
			return errBadOp("unknown tool")
		}
		if op.Size < 1 || op.Size > 40 {
			return errBadOp("size out of range")
		}
		if len(op.Points) == 0 {
			return errBadOp("stroke without points")
		}
		if !validColor(op.Color) {
			return errBadOp("bad color")
		}
		for _, p := range op.Points {
			if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
				return errBadOp("point outside canvas")
			}
		}
	case OpBucketFill:
		if !validColor(op.Color) {
			return errBadOp("bad color")
		}
		if len(op.Points) != 1 {
			return errBadOp("bucket_fill requires one point")
		}
	default:
		return errBadOp("unknown op kind")
	}
	return nil
}

type errBadOp string

func (e errBadOp) Error() string { return string(e) }

func validColor(c string) bool {
	if len(c) != 7 || c[0] != '#' {
		return false
	}
	for _, r := range c[1:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
