package plan

import (
	"time"

	"github.com/jinzhu/now"
)

// PeriodEnd 计算计费周期结束时间。按日历加月，目标月份没有对应日期时取该月最后一天
func PeriodEnd(start time.Time, billingPeriod string) (time.Time, bool) {
	switch billingPeriod {
	case Weekly:
		return start.AddDate(0, 0, 7), true
	case Monthly:
		return addMonths(start, 1), true
	case Quarterly:
		return addMonths(start, 3), true
	case Yearly:
		return addMonths(start, 12), true
	default:
		return time.Time{}, false
	}
}

func addMonths(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())

	day := t.Day()
	if last := now.With(first).EndOfMonth().Day(); day > last {
		day = last
	}

	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
