package core

import (
	"reflect"
	"runtime"
	"sync"
)

const defaultJobHistoryCapacity = 128

// jobHistory is a fixed-size ring of the most recent job executions.
type jobHistory struct {
	mu    sync.Mutex
	items []JobExecutionRecord
	head  int
	count int
}

func newJobHistory(capacity int) *jobHistory {
	if capacity < 1 {
		capacity = defaultJobHistoryCapacity
	}
	return &jobHistory{items: make([]JobExecutionRecord, capacity)}
}

func (h *jobHistory) Add(record JobExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == 0 {
		return
	}

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

func (h *jobHistory) Recent(limit int) []JobExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}

	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]JobExecutionRecord, 0, limit)
	for i := range limit {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

// resolveJobName names a job after the function backing its closure.
func resolveJobName(job Job) string {
	if job == nil {
		return "anonymous"
	}
	pc := reflect.ValueOf(job).Pointer()
	if fn := runtime.FuncForPC(pc); fn != nil && fn.Name() != "" {
		return fn.Name()
	}
	return "anonymous"
}
