package service

import "sync"

// stampedeTracker counts scrapes waiting on each city. singleflight already
// collapses them into one upstream call; the count only feeds the stampede
// metric and the peak of the current burst. Both entries are dropped once
// the last waiter for a city finishes.
type stampedeTracker struct {
	mu      sync.Mutex
	waiting map[string]int
	peak    map[string]int
}

func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{
		waiting: make(map[string]int),
		peak:    make(map[string]int),
	}
}

// begin registers a caller missing the cache for city. It returns how many
// callers are now waiting (including this one) and a func that must be
// called once the caller has its answer.
func (st *stampedeTracker) begin(city string) (int, func()) {
	st.mu.Lock()
	st.waiting[city]++
	n := st.waiting[city]
	if n > st.peak[city] {
		st.peak[city] = n
	}
	st.mu.Unlock()

	var once sync.Once
	return n, func() {
		once.Do(func() {
			st.mu.Lock()
			defer st.mu.Unlock()
			if st.waiting[city] <= 1 {
				delete(st.waiting, city)
				delete(st.peak, city)
				return
			}
			st.waiting[city]--
		})
	}
}

// waitingFor returns how many callers are currently waiting on city.
func (st *stampedeTracker) waitingFor(city string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.waiting[city]
}

// peakFor returns the largest number of simultaneous waiters in the current
// burst for city, or zero when nobody is waiting.
func (st *stampedeTracker) peakFor(city string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.peak[city]
}

// size reports how many cities hold tracking state.
func (st *stampedeTracker) size() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.waiting) + len(st.peak)
}
