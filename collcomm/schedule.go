package collcomm

import (
	"fmt"
	"math/bits"

	"github.com/jedib0t/go-pretty/v6/table"
)

// A Step is the role of one position in one level of a
// binary tree schedule. At most one of Send and Recv is
// set, and Partner is only meaningful if one of them is.
type Step struct {
	Send    bool
	Recv    bool
	Partner int
}

// A Schedule computes the Step of position pos out of n
// at a given level.
type Schedule func(level, pos, n int) Step

// NumLevels is the number of levels of a binary tree over
// n positions.
func NumLevels(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// BroadcastSchedule fans data out from position 0.
//
// Distances halve from one level to the next, so every
// position that holds the data at the start of a level
// sends it to the position half a stride away.
func BroadcastSchedule(level, pos, n int) Step {
	dist := 1 << (NumLevels(n) - 1 - level)
	switch {
	case pos%(2*dist) == 0 && pos+dist < n:
		return Step{Send: true, Partner: pos + dist}
	case pos%(2*dist) == dist:
		return Step{Recv: true, Partner: pos - dist}
	}
	return Step{}
}

// ReduceSchedule fans data in towards position 0.
//
// Distances double from one level to the next. At each
// level, the positions at an odd multiple of the distance
// send their partial result to the position one distance
// below, which combines it with its own.
func ReduceSchedule(level, pos, n int) Step {
	dist := 1 << level
	switch {
	case pos%(2*dist) == dist:
		return Step{Send: true, Partner: pos - dist}
	case pos%(2*dist) == 0 && pos+dist < n:
		return Step{Recv: true, Partner: pos + dist}
	}
	return Step{}
}

// ScheduleTable renders a schedule over n positions, one
// row per level, for inspection.
func ScheduleTable(title string, schedule Schedule, n int) string {
	t := table.NewWriter()
	t.SetTitle(title)
	header := table.Row{"Level"}
	for pos := 0; pos < n; pos++ {
		header = append(header, pos)
	}
	t.AppendHeader(header)
	for level := 0; level < NumLevels(n); level++ {
		row := table.Row{level}
		for pos := 0; pos < n; pos++ {
			step := schedule(level, pos, n)
			switch {
			case step.Send:
				row = append(row, fmt.Sprintf("→%d", step.Partner))
			case step.Recv:
				row = append(row, fmt.Sprintf("←%d", step.Partner))
			default:
				row = append(row, "")
			}
		}
		t.AppendRow(row)
	}
	return t.Render()
}
