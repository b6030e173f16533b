package color

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(&buf)
	start := time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC)
	records := []Record{
		{Time: start, Address: AddressTCS34725, Gain: GainX16, IntegrationTime: IntegrationTime154, Sample: Sample{Clear: 0x1234, Red: 1, Green: 2, Blue: 3}},
		{Time: start.Add(time.Second), Address: AddressTCS34725, Gain: GainX16, IntegrationTime: IntegrationTime154, Sample: Sample{Clear: 0xFFFF}},
	}
	for _, rec := range records {
		require.NoError(t, r.Record(rec))
	}
	assert.Equal(t, 2, r.Count())

	got, err := ReadRecords(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range records {
		assert.True(t, records[i].Time.Equal(got[i].Time))
		assert.Equal(t, records[i].Sample, got[i].Sample)
		assert.Equal(t, records[i].Gain, got[i].Gain)
	}
}

func TestReadRecords_Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRecorder(&buf).Record(Record{Sample: Sample{Red: 7}}))
	data := buf.Bytes()
	got, err := ReadRecords(bytes.NewReader(data[:len(data)-1]))
	assert.Error(t, err)
	assert.Empty(t, got)
}
