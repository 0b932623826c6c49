package out

import (
	"readingroom/internal/modules/reader/domain"
	readerout "readingroom/internal/modules/reader/port/out"
	"readingroom/internal/platform/events"
)

type BusPublisher struct {
	bus *events.Bus
}

func NewBusPublisher(bus *events.Bus) readerout.EventPublisher {
	return &BusPublisher{bus: bus}
}

func (p *BusPublisher) Publish(event domain.ProgressEvent) {
	p.bus.Publish(events.ProgressChanged{DocumentID: event.DocumentID, ProgressPct: event.ProgressPct})
}
