package power

// Crossing describes where cumulative work first exceeded a threshold and
// what happened after it.
type Crossing struct {
	Crossed bool
	Index   int     // index of the sample that crossed
	T       float64 // its timestamp

	// TotalJoules is all work done in the ride.
	TotalJoules float64
	// AboveJoules is work beyond the threshold. The crossing sample only
	// contributes the part of its energy above the threshold.
	AboveJoules float64
	// DepthJoules is AboveJoules restricted to samples whose power exceeds
	// the minimum power.
	DepthJoules float64
	// AfterSeconds is the time credited to the crossing sample and everything
	// after it.
	AfterSeconds float64
}

// CrossThreshold accumulates energy sample by sample and locates the first
// sample whose cumulative energy exceeds thresholdJ.
func CrossThreshold(in []Sample, thresholdJ, minPowerW, nominal float64) Crossing {
	c := Crossing{Index: -1}
	dts := durations(in, nominal)

	var cumulative float64
	for i, s := range in {
		energy := s.Power * dts[i]
		before := cumulative
		cumulative += energy

		if !c.Crossed {
			if cumulative <= thresholdJ {
				continue
			}
			c.Crossed = true
			c.Index = i
			c.T = s.T
			energy = cumulative - max(before, thresholdJ)
		}

		c.AboveJoules += energy
		c.AfterSeconds += dts[i]
		if s.Power > minPowerW {
			c.DepthJoules += energy
		}
	}
	c.TotalJoules = cumulative
	return c
}

