// Package progress carries the event stream emitted while a crawl run
// executes: run lifecycle, per-item lifecycle, and per-page milestones. A
// non-blocking Hub batches events and fans them out to pluggable sinks.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported stages.
const (
	StageRunStart  Stage = "RUN_START"
	StageRunDone   Stage = "RUN_DONE"
	StageRunError  Stage = "RUN_ERROR"
	StageItemStart Stage = "ITEM_START"
	StageItemDone  Stage = "ITEM_DONE"
	StagePageDone  Stage = "PAGE_DONE"
	StagePageRetry Stage = "PAGE_RETRY"
)

// Event is one crawl milestone.
type Event struct {
	// RunID identifies the crawl run this event belongs to.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage is the milestone kind.
	Stage Stage
	// Item is the work-item ID; empty for run-level stages.
	Item string
	// Page is the 1-based page number for page-level stages.
	Page int
	// Records counts new records for PAGE_DONE, total records for ITEM_DONE.
	Records int
	// Status carries the terminal crawl status on ITEM_DONE.
	Status string
	// Dur captures latency for page fetches and item/run completions.
	Dur time.Duration
	// Note attaches low-volume context such as error text.
	Note string
}

// Validate performs coarse validation; invalid events are discarded by the
// Hub rather than surfaced as errors to emitters.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageItemStart, StageItemDone:
		if e.Item == "" {
			return errors.New("item stages require an item id")
		}
	case StagePageDone, StagePageRetry:
		if e.Item == "" {
			return errors.New("page stages require an item id")
		}
		if e.Page < 1 {
			return errors.New("page stages require a positive page")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
