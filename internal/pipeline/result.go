package pipeline

// Stage names the steps of one processing run, in execution order.
type Stage string

const (
	StageIdentify        Stage = "identify"
	StageAnalyze         Stage = "analyze"
	StageSegment         Stage = "segment"
	StageFetchLyrics     Stage = "fetch_lyrics"
	StageOrganize        Stage = "organize"
	StageInitLeaderboard Stage = "init_leaderboard"
)

// Status is the tagged outcome of one stage. Encoding the skip and abort
// rules here keeps them out of scattered conditionals: a FatalFailure stops
// the run, a SoftFailure or Skipped lets it continue.
type Status int

const (
	Success Status = iota
	SoftFailure
	FatalFailure
	Skipped
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case SoftFailure:
		return "soft_failure"
	case FatalFailure:
		return "fatal_failure"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// StageResult records how one stage ended.
type StageResult struct {
	Stage  Stage  `json:"stage"`
	Status Status `json:"status"`
	Err    error  `json:"-"`
}
