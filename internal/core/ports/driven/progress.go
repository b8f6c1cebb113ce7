package driven

// ProgressReporter receives progress events from long-running pipeline
// stages (tile downloads, reclassification). The CLI wires a terminal
// progress bar; tests and quiet runs use NopProgress.
type ProgressReporter interface {
	// StartStage begins a named stage with a known number of steps.
	// A total of 0 means the stage length is unknown.
	StartStage(stage string, total int)

	// Advance records n completed steps, with an optional note.
	Advance(n int, note string)

	// FinishStage marks the current stage complete.
	FinishStage()
}

// NopProgress is a ProgressReporter that discards all events.
type NopProgress struct{}

func (NopProgress) StartStage(string, int) {}
func (NopProgress) Advance(int, string)    {}
func (NopProgress) FinishStage()           {}
