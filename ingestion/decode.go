package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
)

// maxLineBytes bounds one JSON record; detailed outlines can be long.
const maxLineBytes = 16 << 20

// DecodeJSONLines reads one JSON parcel record per line. Blank lines are
// skipped. Lines that are not valid records are returned as rejections
// named "line N" (or by their parcel_id when it could be read) so one bad
// record does not stop the batch. The error is non-nil only when r fails.
func DecodeJSONLines(r io.Reader) ([]*core.Parcel, []core.Rejection, error) {
	var (
		parcels  []*core.Parcel
		rejected []core.Rejection
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var p core.Parcel
		if err := json.Unmarshal(raw, &p); err != nil {
			id := p.ID
			if id == "" {
				id = fmt.Sprintf("line %d", line)
			}
			rejected = append(rejected, core.Rejection{
				ID:     id,
				Reason: fmt.Sprintf("%v: %v", ErrMalformedRecord, err),
			})
			continue
		}
		parcels = append(parcels, &p)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read parcel records: %w", err)
	}
	return parcels, rejected, nil
}

// IngestJSONLines decodes r with DecodeJSONLines and ingests the records.
// Malformed lines are reported alongside validation rejections.
func (p *Pipeline) IngestJSONLines(ctx context.Context, r io.Reader) (*Report, error) {
	parcels, malformed, err := DecodeJSONLines(r)
	if err != nil {
		return nil, err
	}
	report, err := p.Ingest(ctx, parcels)
	if err != nil {
		return nil, err
	}
	report.Rejected = append(malformed, report.Rejected...)
	return report, nil
}
