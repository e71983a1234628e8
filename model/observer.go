// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

// Stage is a step in the install pipeline
type Stage int

const (
	StageIdle Stage = iota
	StageDownloading
	StageValidating
	StageExtracting
	StageInstalling
	StageCleaningUp
	StageDone
	StageFailed
	StageCanceled
)

var stageNames = map[Stage]string{
	StageIdle:        "idle",
	StageDownloading: "downloading",
	StageValidating:  "validating",
	StageExtracting:  "extracting",
	StageInstalling:  "installing",
	StageCleaningUp:  "cleaning up",
	StageDone:        "done",
	StageFailed:      "failed",
	StageCanceled:    "canceled",
}

func (s Stage) String() string {
	name, ok := stageNames[s]
	if !ok {
		return "unknown"
	}

	return name
}

// IsTerminal indicates the stage ends a run
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed || s == StageCanceled
}

// Observer receives notifications from pipelines and caches. Every run ends with exactly one
// call to Completed, Failed or Canceled
type Observer interface {
	Reporter

	StageChanged(stage Stage)
	Completed()
	Failed(err error)
	Canceled()
	CacheChanged()
}

// NopObserver discards all notifications, embed it to implement only some of Observer
type NopObserver struct{}

func (NopObserver) Status(string) {}
func (NopObserver) Progress(float64) {}
func (NopObserver) StageChanged(Stage) {}
func (NopObserver) Completed() {}
func (NopObserver) Failed(error) {}
func (NopObserver) Canceled() {}
func (NopObserver) CacheChanged() {}

var _ Observer = NopObserver{}

// ObserverFuncs is an Observer built from optional callbacks
type ObserverFuncs struct {
	OnStatus       func(msg string)
	OnProgress     func(fraction float64)
	OnStageChanged func(stage Stage)
	OnCompleted    func()
	OnFailed       func(err error)
	OnCanceled     func()
	OnCacheChanged func()
}

var _ Observer = (*ObserverFuncs)(nil)

func (o *ObserverFuncs) Status(msg string) {
	if o.OnStatus != nil {
		o.OnStatus(msg)
	}
}

func (o *ObserverFuncs) Progress(fraction float64) {
	if o.OnProgress != nil {
		o.OnProgress(fraction)
	}
}

func (o *ObserverFuncs) StageChanged(stage Stage) {
	if o.OnStageChanged != nil {
		o.OnStageChanged(stage)
	}
}

func (o *ObserverFuncs) Completed() {
	if o.OnCompleted != nil {
		o.OnCompleted()
	}
}

func (o *ObserverFuncs) Failed(err error) {
	if o.OnFailed != nil {
		o.OnFailed(err)
	}
}

func (o *ObserverFuncs) Canceled() {
	if o.OnCanceled != nil {
		o.OnCanceled()
	}
}

func (o *ObserverFuncs) CacheChanged() {
	if o.OnCacheChanged != nil {
		o.OnCacheChanged()
	}
}
