package domain

// The seat ledger is pure: it computes seat consumption from an Org snapshot
// and performs no I/O. Callers evaluate it inside their own transaction,
// against the locked aggregate, immediately before any write that would
// increase the active count.

// ActiveCount returns the number of active members in the snapshot.
func ActiveCount(o *Org) int {
	n := 0
	for i := range o.Members {
		if o.Members[i].Status == MemberStatusActive {
			n++
		}
	}
	return n
}

// HasCapacity reports whether one more active member fits under MaxSeats.
func HasCapacity(o *Org) bool {
	return ActiveCount(o) < o.MaxSeats
}

// SeatsRemaining returns the number of unused seats, never negative.
func SeatsRemaining(o *Org) int {
	r := o.MaxSeats - ActiveCount(o)
	if r < 0 {
		return 0
	}
	return r
}
