package application

import "time"

// SnapshotQueryFilter selects the transactions of one (user, address) snapshot whose
// timestamp falls inside [From, To], compared at second precision.
type SnapshotQueryFilter struct {
	UserID  string
	Address string
	From    time.Time
	To      time.Time
}

// FromUnix is the smallest whole second not before From.
func (f SnapshotQueryFilter) FromUnix() int64 {
	sec := f.From.Unix()
	if f.From.Nanosecond() > 0 {
		sec++
	}
	return sec
}

// ToUnix is the largest whole second not after To.
func (f SnapshotQueryFilter) ToUnix() int64 {
	return f.To.Unix()
}

// Contains reports whether ts passes the filter's time bounds.
func (f SnapshotQueryFilter) Contains(ts time.Time) bool {
	sec := ts.Unix()
	return sec >= f.FromUnix() && sec <= f.ToUnix()
}
