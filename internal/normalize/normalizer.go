// Package normalize converts heterogeneous inbound push frames into the
// canonical JobEvent shape and discards repeated deliveries. It performs no
// I/O and never fails: a frame either yields exactly one event or none.
package normalize

import (
	"encoding/json"
	"strings"
	"sync"

	"fieldservice-backend/internal/metrics"
	"fieldservice-backend/internal/model"
)

// DefaultDedupeCapacity bounds the recent-keys set.
const DefaultDedupeCapacity = 500

// Normalizer turns raw frames into JobEvents.
type Normalizer struct {
	mu      sync.Mutex
	recent  *dedupeSet
	metrics *metrics.Collector
}

// New creates a normalizer with the given dedupe capacity (0 for default).
func New(dedupeCapacity int, m *metrics.Collector) *Normalizer {
	return &Normalizer{
		recent:  newDedupeSet(dedupeCapacity),
		metrics: m,
	}
}

// Normalize maps one raw frame to zero or one JobEvent. Malformed or
// unrecognized frames and duplicate deliveries return ok=false; they are
// counted but never surface as errors.
func (n *Normalizer) Normalize(frame []byte) (model.JobEvent, bool) {
	if n.metrics != nil {
		n.metrics.RecordFrame()
	}

	var raw map[string]any
	if err := json.Unmarshal(frame, &raw); err != nil {
		return n.discard()
	}

	var ev model.JobEvent
	switch {
	case hasAny(raw, breakdownMarkers):
		ev.Kind = model.KindBreakdown
		ev.JobID = str(raw, breakdownIDFields)
		ev.Job = MapBreakdownJob(raw)
	case hasAny(raw, serviceMarkers):
		ev.Kind = model.KindServiceVisit
		ev.JobID = str(raw, serviceIDFields)
		ev.Job = MapServiceJob(raw)
	default:
		return n.discard()
	}
	if ev.JobID == "" {
		return n.discard()
	}

	ev.Type = mapEventType(str(raw, eventTypeFields))
	ev.Status = mapStatus(str(raw, sharedFields["status"]))
	ev.ServerTimestamp = str(raw, timestampFields)
	ev.DedupeKey = model.ComputeDedupeKey(ev.JobID, ev.Type, ev.ServerTimestamp)

	n.mu.Lock()
	fresh := n.recent.Admit(ev.DedupeKey)
	n.mu.Unlock()
	if !fresh {
		if n.metrics != nil {
			n.metrics.RecordDeduped()
		}
		return model.JobEvent{}, false
	}

	return ev, true
}

func (n *Normalizer) discard() (model.JobEvent, bool) {
	if n.metrics != nil {
		n.metrics.RecordDiscarded()
	}
	return model.JobEvent{}, false
}

func mapEventType(raw string) model.EventType {
	if t, ok := eventTypeNames[strings.ToLower(raw)]; ok {
		return t
	}
	// A frame without a recognizable action is a fresh assignment.
	return model.EventAssigned
}

// MapBreakdownJob maps a raw breakdown payload onto a Job. Every absent
// field takes its documented default: empty string for text, pending for
// status, the sentinel for meter readings. Also used by the bulk
// working-set fetch, which serves items in the same raw shape.
func MapBreakdownJob(raw map[string]any) model.Job {
	return model.Job{
		Kind:             model.KindBreakdown,
		ID:               str(raw, breakdownIDFields),
		Status:           mapStatus(str(raw, sharedFields["status"])),
		MachineRef:       str(raw, breakdownFields["machineRef"]),
		CustomerName:     str(raw, sharedFields["customer"]),
		Location:         str(raw, sharedFields["location"]),
		PhoneNumber:      str(raw, sharedFields["phone"]),
		Date:             str(raw, sharedFields["date"]),
		SerialNo:         str(raw, breakdownFields["serialNo"]),
		Agreement:        model.CustomerAgreement(str(raw, breakdownFields["agreement"])),
		Type:             str(raw, breakdownFields["type"]),
		SolutionCategory: str(raw, breakdownFields["solCat"]),
		SolutionText:     str(raw, breakdownFields["solText"]),
		MeterReading:     model.MeterReadingUnknown,
	}
}

// MapServiceJob maps a raw service-visit payload onto a Job with the same
// defaulting rules as MapBreakdownJob.
func MapServiceJob(raw map[string]any) model.Job {
	return model.Job{
		Kind:            model.KindServiceVisit,
		ID:              str(raw, serviceIDFields),
		Status:          mapStatus(str(raw, sharedFields["status"])),
		MachineRef:      str(raw, serviceFields["machineRef"]),
		CustomerName:    str(raw, sharedFields["customer"]),
		Location:        str(raw, sharedFields["location"]),
		PhoneNumber:     str(raw, sharedFields["phone"]),
		Date:            str(raw, sharedFields["date"]),
		ExpectedVisitNo: int(num(raw, serviceFields["visitNo"], 0)),
		DaysLeft:        int(num(raw, serviceFields["daysLeft"], 0)),
		MeterReading:    num(raw, serviceFields["meter"], model.MeterReadingUnknown),
	}
}
