package vmdiag

import (
	"io"

	"github.com/google/pprof/profile"
)

// / FrameSample is one core-map census entry: vmdiag has no dependency
// / on package coremap, so callers (cmd/vmcensus) convert coremap
// / Entry_t records into this plain shape before calling Profile.
type FrameSample struct {
	Index int
	State string
}

// / Profile builds a github.com/google/pprof/profile.Profile snapshot
// / of the core map, one sample per frame labelled by its state. This
// / is the same dependency the teacher's go.mod carries for runtime
// / CPU/heap profiling, repurposed here as a frame-census tool: loading
// / the result into `go tool pprof -tags` lets a developer see FIXED
// / vs DIRTY vs FREE frame counts and their distribution across the
// / physical address space.
func Profile(samples []FrameSample) *profile.Profile {
	fn := &profile.Function{ID: 1, Name: "frame", SystemName: "frame", Filename: "coremap"}
	loc := &profile.Location{ID: 1, Line: []profile.Line{{Function: fn, Line: 1}}}

	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "frames", Unit: "count"}},
		Function:   []*profile.Function{fn},
		Location:   []*profile.Location{loc},
	}
	for _, s := range samples {
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{1},
			Label:    map[string][]string{"state": {s.State}},
			NumLabel: map[string][]int64{"frame_index": {int64(s.Index)}},
		})
	}
	return p
}

// / WriteProfile gzip-serializes p to w, the pprof wire format.
func WriteProfile(p *profile.Profile, w io.Writer) error {
	return p.Write(w)
}
