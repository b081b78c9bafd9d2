package internal

import "time"

type profileRecord struct {
	current *time.Time
	total   time.Duration
	max     time.Duration
	count   int64
}

// ProfileResult is measured time of one stage in seconds.
type ProfileResult struct {
	Total float64 `json:"total"`
	Max   float64 `json:"max"`
	Count int64   `json:"count"`
}

// Profile measures elapsed time of stages (e.g. "parse", "store") of a file
// import. It's not goroutine safe.
type Profile struct {
	records map[string]*profileRecord
}

// NewProfile is constructor of Profile
func NewProfile() *Profile {
	return &Profile{
		records: map[string]*profileRecord{},
	}
}

// Start begins measurement of the stage. Starting a stage twice without Stop
// is ignored and the first start time is used.
func (x *Profile) Start(stage string) {
	p, ok := x.records[stage]
	if !ok {
		p = &profileRecord{}
		x.records[stage] = p
	}

	if p.current != nil {
		Logger.WithField("stage", stage).Warn("Profile stage started twice")
		return
	}

	now := time.Now()
	p.current = &now
	p.count++
}

// Stop ends measurement of the stage.
func (x *Profile) Stop(stage string) {
	now := time.Now()

	p, ok := x.records[stage]
	if !ok || p.current == nil {
		Logger.WithField("stage", stage).Warn("Profile stage is not started")
		return
	}

	sub := now.Sub(*p.current)
	p.total += sub
	if p.max < sub {
		p.max = sub
	}

	p.current = nil
}

// Pack returns results of all stages.
func (x *Profile) Pack() map[string]ProfileResult {
	v := map[string]ProfileResult{}
	for k, r := range x.records {
		v[k] = ProfileResult{
			Total: r.total.Seconds(),
			Max:   r.max.Seconds(),
			Count: r.count,
		}
	}
	return v
}
