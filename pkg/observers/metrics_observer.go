package observers

import (
	"sync"
	"time"

	"github.com/anggasct/qhsm"
)

// MetricsObserver collects metrics about machine execution. Counters are
// keyed by state or signal name and aggregate every machine it observes.
type MetricsObserver struct {
	qhsm.BaseObserver

	stateVisits      map[string]int
	stateTimeSpent   map[string]time.Duration
	eventCounts      map[string]int
	droppedCounts    map[string]int
	transitionCounts map[string]int
	errorCount       int
	lastStateEntry   map[string]time.Time
	now              func() time.Time
	mutex            sync.RWMutex
}

var _ qhsm.ExtendedObserver = (*MetricsObserver)(nil)

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	o := &MetricsObserver{now: time.Now}
	o.reset()
	return o
}

func entryKey(info qhsm.MachineInfo, state string) string {
	return info.ID + "/" + state
}

// OnStateEnter records state entry metrics
func (o *MetricsObserver) OnStateEnter(state string, info qhsm.MachineInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.stateVisits[state]++
	o.lastStateEntry[entryKey(info, state)] = o.now()
}

// OnStateExit records state exit metrics
func (o *MetricsObserver) OnStateExit(state string, info qhsm.MachineInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	key := entryKey(info, state)
	if entryTime, ok := o.lastStateEntry[key]; ok {
		o.stateTimeSpent[state] += o.now().Sub(entryTime)
		delete(o.lastStateEntry, key)
	}
}

// OnTransition records transition metrics
func (o *MetricsObserver) OnTransition(from string, to string, event qhsm.Event, info qhsm.MachineInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.transitionCounts[from+"->"+to]++
}

// OnEventDispatched counts events once, when the handling state consumes them
func (o *MetricsObserver) OnEventDispatched(state string, event qhsm.Event, handled bool, info qhsm.MachineInfo) {
	if !handled {
		return
	}
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.eventCounts[info.SignalName(event.Signal())]++
}

// OnEventDropped records events that reached Top unhandled
func (o *MetricsObserver) OnEventDropped(event qhsm.Event, info qhsm.MachineInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.droppedCounts[info.SignalName(event.Signal())]++
}

// OnError records error metrics
func (o *MetricsObserver) OnError(err error, info qhsm.MachineInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.errorCount++
}

func copyCounts(src map[string]int) map[string]int {
	result := make(map[string]int, len(src))
	for key, count := range src {
		result[key] = count
	}
	return result
}

// GetStateVisitCounts returns the number of times each state was entered
func (o *MetricsObserver) GetStateVisitCounts() map[string]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyCounts(o.stateVisits)
}

// GetStateTimeSpent returns the time spent in each state between entry and exit
func (o *MetricsObserver) GetStateTimeSpent() map[string]time.Duration {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make(map[string]time.Duration, len(o.stateTimeSpent))
	for state, duration := range o.stateTimeSpent {
		result[state] = duration
	}
	return result
}

// GetEventCounts returns the number of times each signal was handled
func (o *MetricsObserver) GetEventCounts() map[string]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyCounts(o.eventCounts)
}

// GetDroppedCounts returns the number of times each signal was dropped
func (o *MetricsObserver) GetDroppedCounts() map[string]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyCounts(o.droppedCounts)
}

// GetTransitionCounts returns the number of times each transition occurred
func (o *MetricsObserver) GetTransitionCounts() map[string]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyCounts(o.transitionCounts)
}

// GetErrorCount returns the number of errors
func (o *MetricsObserver) GetErrorCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.errorCount
}

// Reset resets all metrics
func (o *MetricsObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.reset()
}

func (o *MetricsObserver) reset() {
	o.stateVisits = make(map[string]int)
	o.stateTimeSpent = make(map[string]time.Duration)
	o.eventCounts = make(map[string]int)
	o.droppedCounts = make(map[string]int)
	o.transitionCounts = make(map[string]int)
	o.errorCount = 0
	o.lastStateEntry = make(map[string]time.Time)
}
