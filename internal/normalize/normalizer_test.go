package normalize

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldservice-backend/internal/model"
)

func TestNormalize_BreakdownFrame(t *testing.T) {
	n := New(0, nil)

	frame := []byte(`{
		"calL_ID": 208299,
		"machinE_REF_NO": "MX-440",
		"teaM_ID": 7,
		"customeR_NAME": "Acme Mills",
		"locatioN": "Dock 4",
		"telephonE_NO": "555-0199",
		"calL_DATE": "2026-08-30",
		"calL_TYPE": "Due",
		"agreemenT_TYPE": "warranty",
		"calL_STATUS": "PENDING",
		"actioN_TYPE": "assigned",
		"serveR_TIME": "2026-08-30T10:00:00Z"
	}`)

	ev, ok := n.Normalize(frame)
	require.True(t, ok)
	assert.Equal(t, model.KindBreakdown, ev.Kind)
	assert.Equal(t, "208299", ev.JobID)
	assert.Equal(t, model.EventAssigned, ev.Type)
	assert.Equal(t, model.StatusPending, ev.Status)
	assert.Equal(t, "MX-440", ev.Job.MachineRef)
	assert.Equal(t, "Acme Mills", ev.Job.CustomerName)
	assert.Equal(t, "Due", ev.Job.Type)
	assert.Equal(t, model.AgreementWarranty, ev.Job.Agreement)
	assert.True(t, ev.Job.DueRecall())
	assert.Equal(t, model.MeterReadingUnknown, ev.Job.MeterReading)
}

func TestNormalize_ServiceFrame(t *testing.T) {
	n := New(0, nil)

	frame := []byte(`{
		"servicE_ID": "5521",
		"expecteD_VISIT_NO": 3,
		"dayS_LEFT": -2,
		"machinE_CODE": "CP-100",
		"customeR_NAME": "Bright Dairy",
		"servicE_STATUS": "STARTED",
		"actioN_TYPE": "update",
		"serveR_TIME": "2026-08-30T11:00:00Z"
	}`)

	ev, ok := n.Normalize(frame)
	require.True(t, ok)
	assert.Equal(t, model.KindServiceVisit, ev.Kind)
	assert.Equal(t, "5521", ev.JobID)
	assert.Equal(t, model.EventStatusChanged, ev.Type)
	assert.Equal(t, model.StatusStarted, ev.Status)
	assert.Equal(t, 3, ev.Job.ExpectedVisitNo)
	assert.Equal(t, -2, ev.Job.DaysLeft)
	assert.Equal(t, "CP-100", ev.Job.MachineRef)
}

func TestNormalize_DefaultsForMissingFields(t *testing.T) {
	n := New(0, nil)

	// Only the kind marker and ID are present. Everything else takes its
	// documented default.
	ev, ok := n.Normalize([]byte(`{"calL_ID": "77"}`))
	require.True(t, ok)
	assert.Equal(t, model.EventAssigned, ev.Type)
	assert.Equal(t, model.StatusPending, ev.Status)
	assert.Equal(t, "", ev.Job.CustomerName)
	assert.Equal(t, "", ev.Job.MachineRef)
	assert.Equal(t, "", ev.ServerTimestamp)
}

func TestNormalize_MalformedFramesNeverFail(t *testing.T) {
	n := New(0, nil)

	cases := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{}`),
		[]byte(`{"unrelated": true}`),
		[]byte(`{"calL_ID": ""}`),
		[]byte(`[]`),
		nil,
	}
	for _, frame := range cases {
		_, ok := n.Normalize(frame)
		assert.False(t, ok, "frame %q should produce no event", frame)
	}
}

func TestNormalize_DeduplicatesRepeatedDeliveries(t *testing.T) {
	n := New(0, nil)
	frame := []byte(`{"calL_ID": "9", "actioN_TYPE": "assigned", "serveR_TIME": "t1"}`)

	_, ok := n.Normalize(frame)
	require.True(t, ok)

	_, ok = n.Normalize(frame)
	assert.False(t, ok, "second delivery of the same logical event must be dropped")

	// Same job and type but a new server timestamp is a new logical event.
	later := []byte(`{"calL_ID": "9", "actioN_TYPE": "assigned", "serveR_TIME": "t2"}`)
	_, ok = n.Normalize(later)
	assert.True(t, ok)
}

func TestDedupeSet_FIFOEviction(t *testing.T) {
	d := newDedupeSet(3)

	require.True(t, d.Admit("a"))
	require.True(t, d.Admit("b"))
	require.True(t, d.Admit("c"))
	assert.False(t, d.Admit("a"))
	assert.Equal(t, 3, d.Len())

	// "d" evicts the oldest key "a"; "a" is admissible again afterwards.
	require.True(t, d.Admit("d"))
	assert.Equal(t, 3, d.Len())
	assert.True(t, d.Admit("a"))
	// Now "b" was evicted by "a".
	assert.True(t, d.Admit("b"))
	assert.False(t, d.Admit("d"))
}

func TestDedupeSet_LargeChurn(t *testing.T) {
	d := newDedupeSet(500)
	for i := 0; i < 2000; i++ {
		require.True(t, d.Admit(fmt.Sprintf("k%d", i)))
	}
	assert.Equal(t, 500, d.Len())
	// The most recent 500 keys are retained, older ones are gone.
	assert.False(t, d.Admit("k1999"))
	assert.True(t, d.Admit("k0"))
}
