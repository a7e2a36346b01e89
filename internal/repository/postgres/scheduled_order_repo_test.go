// internal/repository/postgres/scheduled_order_repo_test.go
package postgres

import (
	"database/sql"
	"reflect"
	"testing"
	"time"

	"jikoni-service/internal/domain/schedule"
	"jikoni-service/internal/pkg/recurrence"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRow feeds canned column values into scanScheduledOrder the way a pgx
// row would.
type stubRow struct {
	values []any
}

func (s stubRow) Scan(dest ...any) error {
	for i, d := range dest {
		v := s.values[i]
		if v == nil {
			continue
		}
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

func orderRowValues(templateJSON, daysJSON []byte) []any {
	now := time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)
	return []any{
		int64(1), "SCH-20240601-ABCD", int64(7), "Office lunch", sql.NullString{},
		recurrence.PatternDaily, now, sql.NullTime{}, "12:00",
		sql.NullInt32{}, daysJSON,
		templateJSON, decimal.NewFromInt(1200), "KES", sql.NullString{},
		0, 0, 0, sql.NullInt32{},
		sql.NullTime{}, sql.NullTime{},
		schedule.OrderStatusActive, sql.NullTime{}, sql.NullString{}, sql.NullTime{}, sql.NullString{},
		false, true, 30,
		sql.NullString{}, false,
		now, now,
	}
}

func TestScanScheduledOrderDecodesJSON(t *testing.T) {
	row := stubRow{values: orderRowValues(
		[]byte(`{"items":[{"name":"beef burger","quantity":2}]}`),
		[]byte(`[1,4]`),
	)}

	o, err := scanScheduledOrder(row)
	require.NoError(t, err)
	assert.Equal(t, int64(1), o.ID)
	assert.Equal(t, []time.Weekday{time.Monday, time.Thursday}, o.SelectedDaysOfWeek)
	require.Contains(t, o.OrderTemplate, "items")
}

func TestScanScheduledOrderCorruptTemplate(t *testing.T) {
	row := stubRow{values: orderRowValues([]byte(`{"items":`), nil)}

	o, err := scanScheduledOrder(row)
	require.Error(t, err)
	assert.Nil(t, o)
	assert.Contains(t, err.Error(), "order template")
}

func TestScanScheduledOrderCorruptSelectedDays(t *testing.T) {
	row := stubRow{values: orderRowValues(nil, []byte(`[1,`))}

	o, err := scanScheduledOrder(row)
	require.Error(t, err)
	assert.Nil(t, o)
	assert.Contains(t, err.Error(), "selected days")
}
