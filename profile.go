package gjsdb

import (
	"io"

	"github.com/google/pprof/profile"
)

// WriteProfile writes the statement hit counts of every loaded script as a
// gzipped pprof profile. Each executed statement is one sample.
func (dbg *Debugger) WriteProfile(w io.Writer) error {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "statements", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "statements", Unit: "count"},
		Period:     1,
	}

	type funcKey struct {
		url, name string
	}
	funcs := make(map[funcKey]*profile.Function)

	for _, script := range dbg.debuggee.scripts {
		for _, site := range script.Sites {
			if site.hits == 0 {
				continue
			}
			url, line, _ := site.Location()
			key := funcKey{url, site.FuncName}
			fn := funcs[key]
			if fn == nil {
				fn = &profile.Function{
					ID:       uint64(len(p.Function) + 1),
					Name:     site.FuncName,
					Filename: url,
				}
				funcs[key] = fn
				p.Function = append(p.Function, fn)
			}
			loc := &profile.Location{
				ID:   uint64(len(p.Location) + 1),
				Line: []profile.Line{{Function: fn, Line: int64(line)}},
			}
			p.Location = append(p.Location, loc)
			p.Sample = append(p.Sample, &profile.Sample{
				Location: []*profile.Location{loc},
				Value:    []int64{site.hits},
			})
		}
	}
	if err := p.CheckValid(); err != nil {
		return err
	}
	return p.Write(w)
}
