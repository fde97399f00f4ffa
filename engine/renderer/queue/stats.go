package queue

import (
	"bytes"
	"fmt"

	"github.com/olekukonko/tablewriter"
)

// Stats counts the work a CommandQueue has done.
type Stats struct {
	Type ListType

	Submissions uint64
	Discards    uint64
	Signals     uint64
	Waits       uint64
	// Waits that returned without blocking.
	WaitsSatisfied uint64
	Timeouts       uint64
	Flushes        uint64

	AllocatorsCreated uint64
	AllocatorsReused  uint64
	ListsCreated      uint64
	ListsReused       uint64

	PendingAllocators int
	PooledLists       int

	LastSignaled FenceValue
	Completed    FenceValue
}

// Table renders the stats as a two column table.
func (s Stats) Table() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Counter", "Value"})
	rows := [][]string{
		{"Submissions", fmt.Sprint(s.Submissions)},
		{"Discarded contexts", fmt.Sprint(s.Discards)},
		{"Signals", fmt.Sprint(s.Signals)},
		{"Waits", fmt.Sprintf("%d (%d already complete)", s.Waits, s.WaitsSatisfied)},
		{"Wait timeouts", fmt.Sprint(s.Timeouts)},
		{"Flushes", fmt.Sprint(s.Flushes)},
		{"Allocators created", fmt.Sprint(s.AllocatorsCreated)},
		{"Allocators reused", fmt.Sprint(s.AllocatorsReused)},
		{"Command lists created", fmt.Sprint(s.ListsCreated)},
		{"Command lists reused", fmt.Sprint(s.ListsReused)},
		{"Pending allocators", fmt.Sprint(s.PendingAllocators)},
		{"Pooled command lists", fmt.Sprint(s.PooledLists)},
	}
	table.AppendBulk(rows)
	table.SetFooter([]string{fmt.Sprintf("%s queue", s.Type), fmt.Sprintf("fence %d / %d", s.Completed, s.LastSignaled)})
	table.Render()
	return buf.String()
}
