package numerator

// ReservedRange is a block of pre-allocated numbers [Start, End].
// Current is the next number to hand out; Start <= Current <= End+1.
// It lives in memory only.
type ReservedRange struct {
	Start   int64 `json:"start"`
	End     int64 `json:"end"`
	Current int64 `json:"current"`
}

// NewReservedRange covers [start, start+count-1].
func NewReservedRange(start, count int64) *ReservedRange {
	return &ReservedRange{
		Start:   start,
		End:     start + count - 1,
		Current: start,
	}
}

// Next returns the next number and false once the range is exhausted.
func (r *ReservedRange) Next() (int64, bool) {
	if r.Exhausted() {
		return 0, false
	}
	n := r.Current
	r.Current++
	return n, true
}

// Exhausted reports whether every number has been drawn.
func (r *ReservedRange) Exhausted() bool {
	return r.Current > r.End
}

// Remaining is the count of numbers still available.
func (r *ReservedRange) Remaining() int64 {
	if r.Exhausted() {
		return 0
	}
	return r.End - r.Current + 1
}
