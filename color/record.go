package color

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

var recordEncMode cbor.EncMode
var recordDecMode cbor.DecMode

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}
	recordEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create record CBOR encoder mode: %v", err))
	}
	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthAllowed,
	}
	recordDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create record CBOR decoder mode: %v", err))
	}
}

// Record is one timestamped sample as written by a Recorder.
type Record struct {
	Time            time.Time       `cbor:"1,keyasint" yaml:"time"`
	Address         byte            `cbor:"2,keyasint" yaml:"address"`
	Gain            Gain            `cbor:"3,keyasint" yaml:"gain"`
	IntegrationTime IntegrationTime `cbor:"4,keyasint" yaml:"integration_time"`
	Sample          Sample          `cbor:"5,keyasint" yaml:"sample"`
}

// Recorder appends records to a stream of concatenated CBOR items.
type Recorder struct {
	enc   *cbor.Encoder
	count int
}

func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: recordEncMode.NewEncoder(w)}
}

func (r *Recorder) Record(rec Record) error {
	if err := r.enc.Encode(rec); err != nil {
		return fmt.Errorf("could not encode record %d: %w", r.count, err)
	}
	r.count++
	return nil
}

func (r *Recorder) Count() int {
	return r.count
}

// ReadRecords decodes every record of a stream written by a Recorder.
func ReadRecords(rd io.Reader) ([]Record, error) {
	dec := recordDecMode.NewDecoder(rd)
	var out []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("could not decode record %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
}
