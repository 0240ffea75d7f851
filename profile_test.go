package gjsdb

import (
	"bytes"
	"testing"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteProfile(t *testing.T) {
	d, dbg, _ := newTestDebugger(t)
	_, err := d.RunScript("hot.js", "var sum = 0;\nfor (var i = 0; i < 5; i++) {\n  sum += i;\n}\nfunction f() {\n  return 1;\n}\nf();\n")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, dbg.WriteProfile(&buf))
	p, err := profile.Parse(&buf)
	require.NoError(t, err)

	require.Len(t, p.SampleType, 1)
	assert.Equal(t, "statements", p.SampleType[0].Type)

	hits := make(map[int64]int64)
	funcs := make(map[int64]string)
	for _, s := range p.Sample {
		require.Len(t, s.Location, 1)
		line := s.Location[0].Line[0]
		hits[line.Line] += s.Value[0]
		funcs[line.Line] = line.Function.Name
		assert.Equal(t, "hot.js", line.Function.Filename)
	}
	assert.Equal(t, map[int64]int64{1: 1, 2: 1, 3: 5, 6: 1, 8: 1}, hits)
	assert.Equal(t, "f", funcs[6])
	assert.Equal(t, globalCode, funcs[3])
	assert.Len(t, p.Function, 2)
}

func TestWriteProfileEmpty(t *testing.T) {
	_, dbg, _ := newTestDebugger(t)
	var buf bytes.Buffer
	require.NoError(t, dbg.WriteProfile(&buf))
	p, err := profile.Parse(&buf)
	require.NoError(t, err)
	assert.Empty(t, p.Sample)
}
