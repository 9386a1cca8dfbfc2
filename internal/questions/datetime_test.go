package questions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/relay/pkg/schema"
)

func fixedNow(q *DateTime, at time.Time) *DateTime {
	q.now = func() time.Time { return at }
	return q
}

func TestDateTime_ParsesLayoutTable(t *testing.T) {
	q := NewDateTime("when?")

	out, err := validate(t, q, "2026-03-01 14:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC), out)

	out, err = validate(t, q, "01/03/2026")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), out)

	_, err = validate(t, q, "not a date")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestDate_RejectsTimeOnly(t *testing.T) {
	_, err := validate(t, NewDate("day?"), "15:04")
	require.Error(t, err)
}

func TestTime_ParsesClock(t *testing.T) {
	out, err := validate(t, NewTime("at?"), "9:30 AM")
	require.NoError(t, err)
	assert.Equal(t, 9, out.(time.Time).Hour())
	assert.Equal(t, 30, out.(time.Time).Minute())
}

func TestDateTime_PastAndFuture(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	past := fixedNow(NewDate("born?").InThePast(), now)
	_, err := validate(t, past, "2030-01-01")
	require.Error(t, err)
	out, err := validate(t, past, "1990-01-01")
	require.NoError(t, err)
	assert.Equal(t, 1990, out.(time.Time).Year())

	future := fixedNow(NewDate("when?").InTheFuture(), now)
	_, err = validate(t, future, "2020-01-01")
	require.Error(t, err)
	_, err = validate(t, future, "2030-01-01")
	require.NoError(t, err)
}

func TestDateTime_BeforeAfterBounds(t *testing.T) {
	q := NewDate("when?").
		After(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)).
		Before(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err := validate(t, q, "2025-06-01")
	require.Error(t, err)
	_, err = validate(t, q, "2027-06-01")
	require.Error(t, err)
	_, err = validate(t, q, "2026-06-01")
	require.NoError(t, err)
}

func TestDateTime_CustomLayouts(t *testing.T) {
	q := NewDateTime("when?").Layouts("Jan 2 2006")

	out, err := validate(t, q, "Mar 1 2026")
	require.NoError(t, err)
	assert.Equal(t, time.March, out.(time.Time).Month())

	_, err = validate(t, q, "2026-03-01")
	require.Error(t, err)
}
