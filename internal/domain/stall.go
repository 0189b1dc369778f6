package domain

const (
	DefaultStallSpeedThreshold = 0.1
	DefaultStallStepThreshold  = 50
)

// StallPolicy decides when a probe vehicle is considered permanently blocked.
//
// A single slow sample is normal (traffic lights, queues). Only a run of
// StepThreshold consecutive samples below SpeedThreshold marks a vehicle as stalled.
type StallPolicy struct {
	SpeedThreshold float64
	StepThreshold  int
}

func DefaultStallPolicy() StallPolicy {
	return StallPolicy{
		SpeedThreshold: DefaultStallSpeedThreshold,
		StepThreshold:  DefaultStallStepThreshold,
	}
}

// Next applies one speed sample to the current stall count.
// It returns the updated count and whether the vehicle is now stalled.
func (p StallPolicy) Next(count int, speed float64) (int, bool) {
	if speed >= p.SpeedThreshold {
		return 0, false
	}

	count++
	return count, count >= p.StepThreshold
}
