package build

import (
	"sync"
	"time"
)

// BuildMetrics tracks build runs across a watch session
type BuildMetrics struct {
	TotalBuilds      int64
	SuccessfulBuilds int64
	FailedBuilds     int64
	PagesWritten     int64
	PagesSkipped     int64
	AverageDuration  time.Duration
	TotalDuration    time.Duration
	mutex            sync.RWMutex
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordBuild records one build run. A run fails when it returned an error
// or any page failed to compile.
func (bm *BuildMetrics) RecordBuild(report *Report, err error) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds++

	if report != nil {
		bm.TotalDuration += report.Duration
		bm.PagesWritten += int64(report.Pages)
		bm.PagesSkipped += int64(report.Skipped)
	}

	if err != nil || (report != nil && len(report.Failed) > 0) {
		bm.FailedBuilds++
	} else {
		bm.SuccessfulBuilds++
	}

	bm.AverageDuration = bm.TotalDuration / time.Duration(bm.TotalBuilds)
}

// GetSnapshot returns a snapshot of current metrics
func (bm *BuildMetrics) GetSnapshot() BuildMetrics {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()
	return BuildMetrics{
		TotalBuilds:      bm.TotalBuilds,
		SuccessfulBuilds: bm.SuccessfulBuilds,
		FailedBuilds:     bm.FailedBuilds,
		PagesWritten:     bm.PagesWritten,
		PagesSkipped:     bm.PagesSkipped,
		AverageDuration:  bm.AverageDuration,
		TotalDuration:    bm.TotalDuration,
	}
}

// Reset resets all metrics
func (bm *BuildMetrics) Reset() {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds = 0
	bm.SuccessfulBuilds = 0
	bm.FailedBuilds = 0
	bm.PagesWritten = 0
	bm.PagesSkipped = 0
	bm.AverageDuration = 0
	bm.TotalDuration = 0
}

// GetSkipRate returns the share of pages left untouched because their
// fingerprint was unchanged, as a percentage
func (bm *BuildMetrics) GetSkipRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	total := bm.PagesWritten + bm.PagesSkipped
	if total == 0 {
		return 0.0
	}

	return float64(bm.PagesSkipped) / float64(total) * 100.0
}

// GetSuccessRate returns the success rate as a percentage
func (bm *BuildMetrics) GetSuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	if bm.TotalBuilds == 0 {
		return 0.0
	}

	return float64(bm.SuccessfulBuilds) / float64(bm.TotalBuilds) * 100.0
}
