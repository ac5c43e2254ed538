package normalize

import (
	"strconv"

	"fieldservice-backend/internal/model"
)

// The backend names the same field differently per job kind, with the
// mangled mixed casing of its serializer. Each canonical field lists the
// exact source names it may arrive under; lookup is by exact match against
// this closed table, never by guessing.

var breakdownIDFields = []string{"calL_ID", "callId", "call_id"}
var serviceIDFields = []string{"servicE_ID", "serviceId", "service_id"}

// Kind markers. Breakdown frames carry machine-reference and team fields;
// service frames carry visit-numbering fields.
var breakdownMarkers = []string{"machinE_REF_NO", "teaM_ID", "calL_ID"}
var serviceMarkers = []string{"expecteD_VISIT_NO", "visiT_NO", "servicE_ID"}

var sharedFields = map[string][]string{
	"status":   {"calL_STATUS", "servicE_STATUS", "status"},
	"customer": {"customeR_NAME", "customerName", "customer_name"},
	"location": {"locatioN", "address", "location"},
	"phone":    {"telephonE_NO", "phoneNumber", "phone_no"},
	"date":     {"calL_DATE", "visiT_DATE", "date"},
}

var breakdownFields = map[string][]string{
	"machineRef": {"machinE_REF_NO", "machineRefNo"},
	"serialNo":   {"seriaL_NO", "serialNo"},
	"agreement":  {"agreemenT_TYPE", "customerAgreement"},
	"type":       {"calL_TYPE", "type"},
	"solCat":     {"solutioN_CATEGORY", "solutionCategory"},
	"solText":    {"solutioN_TEXT", "solutionText"},
}

var serviceFields = map[string][]string{
	"machineRef": {"machinE_CODE", "machineCode"},
	"visitNo":    {"expecteD_VISIT_NO", "visiT_NO", "visitNo"},
	"daysLeft":   {"dayS_LEFT", "daysLeft"},
	"meter":      {"meteR_READING", "meterReading"},
}

var eventTypeFields = []string{"actioN_TYPE", "action", "eventType"}
var timestampFields = []string{"serveR_TIME", "serverTimestamp", "timestamp"}

// eventTypeNames maps backend action names onto canonical event types.
var eventTypeNames = map[string]model.EventType{
	"assigned":  model.EventAssigned,
	"new":       model.EventAssigned,
	"insert":    model.EventAssigned,
	"status":    model.EventStatusChanged,
	"update":    model.EventStatusChanged,
	"changed":   model.EventStatusChanged,
	"cancel":    model.EventCancelled,
	"cancelled": model.EventCancelled,
	"canceled":  model.EventCancelled,
}

// statusNames maps backend status strings onto lifecycle states. Absent or
// unknown statuses default to pending.
var statusNames = map[string]model.JobStatus{
	"PENDING":   model.StatusPending,
	"ASSIGNED":  model.StatusPending,
	"STARTED":   model.StatusStarted,
	"WIP":       model.StatusStarted,
	"COMPLETED": model.StatusCompleted,
	"CLOSED":    model.StatusCompleted,
	"CANCELLED": model.StatusCancelled,
}

func hasAny(frame map[string]any, names []string) bool {
	for _, n := range names {
		if _, ok := frame[n]; ok {
			return true
		}
	}
	return false
}

// str looks up the first present candidate and coerces it to a string.
// Absent or non-text values yield the empty string.
func str(frame map[string]any, names []string) string {
	for _, n := range names {
		v, ok := frame[n]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			return t
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(t)
		}
	}
	return ""
}

// num looks up the first present candidate and coerces it to an integer,
// defaulting to def when absent or unparseable.
func num(frame map[string]any, names []string, def int64) int64 {
	for _, n := range names {
		v, ok := frame[n]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			return int64(t)
		case string:
			if i, err := strconv.ParseInt(t, 10, 64); err == nil {
				return i
			}
		}
	}
	return def
}

func mapStatus(raw string) model.JobStatus {
	if s, ok := statusNames[raw]; ok {
		return s
	}
	// Also accept the canonical lowercase names.
	if s := model.JobStatus(raw); s.Valid() {
		return s
	}
	return model.StatusPending
}
