package pump

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Scheduler starts unattended auto runs at configured times. Each cron fire
// only enqueues an event; the run loop decides whether it is honored, so a
// schedule can never interrupt a manual run or a calibration screen.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(c *Controller, specs []string) (*Scheduler, error) {
	cr := cron.New()
	for _, spec := range specs {
		spec := spec
		if _, err := cr.AddFunc(spec, func() {
			if !c.Enqueue(Event{Type: EventAutoStart}) {
				log.Printf("pump: schedule %q fired but the event queue is full", spec)
			}
		}); err != nil {
			return nil, fmt.Errorf("pump: schedule %q: %w", spec, err)
		}
	}
	return &Scheduler{cron: cr}, nil
}

func (s *Scheduler) Start() { s.cron.Start() }
