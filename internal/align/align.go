// Package align reshapes raw feed transactions onto the scoring model's
// currently expected column set. It is the single choke point where
// untyped external data becomes a complete, non-null payload: whatever the
// feed or the schema endpoint does, Align produces a payload whose key set
// equals the expected schema exactly.
package align

import (
	"context"
	"fmt"
	"time"

	"github.com/cnoret/fraudpipe/internal/domain"
	"github.com/cnoret/fraudpipe/internal/logger"
)

const (
	fieldCurrentTime = "current_time"
	fieldUnixTime    = "unix_time"
	fieldDatetime    = "trans_date_trans_time"
	fieldTransNum    = "trans_num"

	// defaultDatetime substitutes for an unconvertible timestamp.
	defaultDatetime = "2020-06-15 12:00:00"
	datetimeLayout  = "2006-01-02 15:04:05"

	// Timestamp rescaling constants. Feed timestamps are wall-clock
	// milliseconds; the model was trained on 2020 data. Anything past the
	// cutoff is wrapped deterministically into the one-year training window
	// rather than converted, and this arithmetic is load-bearing: the model
	// deployment does the same rescale, so it must match bit for bit.
	msCutoff    int64 = 1_640_995_200_000 // 2022-01-01 in ms
	eraStart    int64 = 1_577_836_800     // 2020-01-01 in s
	yearSeconds int64 = 31_536_000
)

// SchemaSource discovers the model's currently expected columns. The
// schema must be treated as mutable between calls; a previous run's answer
// is never assumed valid.
type SchemaSource interface {
	ExpectedColumns(ctx context.Context) ([]string, error)
}

// Aligner maps raw transactions onto the expected schema.
type Aligner struct {
	source   SchemaSource
	defaults Defaults
	now      func() time.Time
}

// New creates an Aligner over the given schema source and default table.
func New(source SchemaSource, defaults Defaults) *Aligner {
	return &Aligner{
		source:   source,
		defaults: defaults,
		now:      time.Now,
	}
}

// Align produces a payload containing exactly the expected columns, every
// value non-nil. It cannot fail: schema discovery failure falls back to the
// fixed schema, missing fields fall back to the default table, and fields
// without a registered default get 0 (or a wall-clock-derived value for the
// transaction number, so replays of the same raw record stay tellable
// apart from unrelated transactions).
func (a *Aligner) Align(ctx context.Context, raw domain.RawTransaction) domain.AlignedPayload {
	log := logger.FromContext(ctx)

	schema, err := a.source.ExpectedColumns(ctx)
	if err != nil {
		log.Warn().
			Err(err).
			Str("fallback_version", FallbackSchemaVersion).
			Msg("Schema discovery failed, using fallback schema")
		schema = FallbackSchema()
	}

	// Work on a copy; the raw record belongs to the caller.
	work := make(domain.RawTransaction, len(raw)+2)
	for k, v := range raw {
		work[k] = v
	}

	a.normalizeUnixTime(work, schema)
	a.deriveDatetime(work, schema)

	payload := make(domain.AlignedPayload, len(schema))
	for _, col := range schema {
		switch {
		case work[col] != nil:
			payload[col] = work[col]
		case a.defaults[col] != nil:
			payload[col] = a.defaults[col]
		case col == fieldTransNum:
			payload[col] = fmt.Sprintf("default_%d", a.now().Unix())
		default:
			payload[col] = 0
		}
	}
	return payload
}

// normalizeUnixTime converts the feed's millisecond current_time into the
// unix_time seconds column the model expects. Values past the cutoff are
// rescaled into the training era; earlier values are plain ms→s division.
func (a *Aligner) normalizeUnixTime(work domain.RawTransaction, schema []string) {
	if !contains(schema, fieldUnixTime) {
		return
	}
	ms, ok := asInt64(work[fieldCurrentTime])
	if !ok {
		return
	}
	if ms > msCutoff {
		work[fieldUnixTime] = eraStart + (ms/1000)%yearSeconds
	} else {
		work[fieldUnixTime] = ms / 1000
	}
}

// deriveDatetime formats unix_time as the human-readable datetime column
// when the schema wants one. A non-numeric unix_time falls back to the
// fixed literal rather than failing.
func (a *Aligner) deriveDatetime(work domain.RawTransaction, schema []string) {
	if !contains(schema, fieldDatetime) {
		return
	}
	if _, present := work[fieldUnixTime]; !present {
		return
	}
	secs, ok := asInt64(work[fieldUnixTime])
	if !ok {
		work[fieldDatetime] = defaultDatetime
		return
	}
	work[fieldDatetime] = time.Unix(secs, 0).Format(datetimeLayout)
}

// asInt64 reads a scalar that may arrive as any of the numeric shapes
// encoding/json (or a test fixture) produces.
func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	default:
		return 0, false
	}
}

func contains(schema []string, col string) bool {
	for _, c := range schema {
		if c == col {
			return true
		}
	}
	return false
}
