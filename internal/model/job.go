package model

import "time"

// JobKind discriminates the two kinds of field jobs a technician works.
type JobKind string

const (
	KindServiceVisit JobKind = "service"
	KindBreakdown    JobKind = "breakdown"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusStarted   JobStatus = "started"
	StatusCompleted JobStatus = "completed"
	StatusCancelled JobStatus = "cancelled"
)

// statusRank orders the forward lifecycle. Cancelled sits outside the
// ordering and is handled explicitly.
var statusRank = map[JobStatus]int{
	StatusPending:   0,
	StatusStarted:   1,
	StatusCompleted: 2,
}

// Rank returns the forward-progress ordinal of a status, or -1 for
// statuses outside the pending→started→completed chain.
func (s JobStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is one of the recognized lifecycle states.
func (s JobStatus) Valid() bool {
	return s == StatusPending || s == StatusStarted || s == StatusCompleted || s == StatusCancelled
}

// Terminal reports whether no further transition may leave s.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CustomerAgreement classifies how a breakdown visit is billed.
type CustomerAgreement string

const (
	AgreementWarranty    CustomerAgreement = "warranty"
	AgreementFreeService CustomerAgreement = "free-service"
	AgreementPaid        CustomerAgreement = "paid"
)

// Breakdown assignment types as issued by the backend. Due marks a
// recall-eligible overdue instance; Assign is a fresh assignment.
const (
	BreakdownTypeAssign = "Assign"
	BreakdownTypeDue    = "Due"
)

// MeterReadingUnknown is the sentinel for an absent meter reading.
const MeterReadingUnknown int64 = -1

// JobKey is the identity of a job within a technician's working set.
type JobKey struct {
	Kind JobKind
	ID   string
}

// Job is the central entity: one service visit or breakdown job.
// StartedAt/CompletedAt are zero when unset so Job stays comparable.
type Job struct {
	Kind         JobKind   `json:"kind"`
	ID           string    `json:"jobId"`
	Status       JobStatus `json:"status"`
	MachineRef   string    `json:"machineRef"`
	CustomerName string    `json:"customerName"`
	Location     string    `json:"location"`
	PhoneNumber  string    `json:"phoneNumber"`
	Date         string    `json:"date"`

	// Service-visit fields.
	ExpectedVisitNo int   `json:"expectedVisitNo,omitempty"`
	DaysLeft        int   `json:"daysLeft,omitempty"`
	MeterReading    int64 `json:"meterReadingValue,omitempty"`

	// Breakdown fields.
	SerialNo     string            `json:"serialNo,omitempty"`
	Agreement    CustomerAgreement `json:"customerAgreement,omitempty"`
	Type         string            `json:"type,omitempty"`
	RecallReason string            `json:"recallReason,omitempty"`

	// Completion fields, shared by both kinds.
	SolutionCategory string `json:"solutionCategory,omitempty"`
	SolutionText     string `json:"solutionText,omitempty"`

	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// Key returns the job's identity.
func (j Job) Key() JobKey {
	return JobKey{Kind: j.Kind, ID: j.ID}
}

// DueRecall reports whether this is an overdue breakdown instance that
// requires a recall justification before it may be started.
func (j Job) DueRecall() bool {
	return j.Kind == KindBreakdown && j.Type == BreakdownTypeDue
}
