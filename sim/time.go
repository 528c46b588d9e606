package sim

import "log"

// SimTime counts core clock cycles since the start of the simulation.
type SimTime uint64

// MaxSimTime is later than any reachable simulation time.
const MaxSimTime = SimTime(1<<64 - 1)

// A TimeConverter maps durations expressed in a user time base onto core
// clock cycles. The mapping is a plain integer factor, so conversions in
// both directions stay exact.
type TimeConverter struct {
	factor SimTime
}

// NewTimeConverter creates a converter with the given cycles-per-unit
// factor.
func NewTimeConverter(factor SimTime) TimeConverter {
	if factor == 0 {
		log.Panic("time converter factor cannot be 0")
	}

	return TimeConverter{factor: factor}
}

// Factor returns the number of core cycles in one unit of the converter's
// time base.
func (t TimeConverter) Factor() SimTime {
	return t.factor
}

// ToCoreTime converts a duration in the converter's time base to core
// cycles.
func (t TimeConverter) ToCoreTime(d SimTime) SimTime {
	return d * t.factor
}

// FromCoreTime converts a core cycle count to the converter's time base,
// truncating any fractional remainder.
func (t TimeConverter) FromCoreTime(c SimTime) SimTime {
	return c / t.factor
}
