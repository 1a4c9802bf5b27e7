package kirsch

// Decision is the strongest response at a pixel and the direction producing it.
type Decision struct {
	Max       int32
	Direction uint8
}

// Select scans directions 0..7 and keeps the first maximum, so ties resolve
// to the lowest index.
func Select(r [Directions]int32) Decision {
	best := Decision{Max: r[0]}
	for d := 1; d < Directions; d++ {
		if r[d] > best.Max {
			best = Decision{Max: r[d], Direction: uint8(d)}
		}
	}
	return best
}
