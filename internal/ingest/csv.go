package ingest

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/spotter-labs/fuel-router/internal/station"
	"github.com/spotter-labs/fuel-router/pkg/geocode"
)

// Expected CSV header names, matched case-insensitively after trimming.
const (
	colOPISID  = "opis truckstop id"
	colName    = "truckstop name"
	colAddress = "address"
	colCity    = "city"
	colState   = "state"
	colRackID  = "rack id"
	colPrice   = "retail price"
)

// ParseCSV reads the fuel-price export into station rows. Duplicate
// opis_ids keep the first occurrence. Rows with an unparseable id or
// price are logged and skipped.
func ParseCSV(r io.Reader) ([]station.Station, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read header")
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{colOPISID, colName, colAddress, colCity, colState, colPrice} {
		if _, ok := idx[required]; !ok {
			return nil, eris.Errorf("ingest: missing column %q", required)
		}
	}

	field := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var stations []station.Station
	seen := make(map[int]struct{})
	line := 1

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read line %d", line)
		}

		opisID, err := strconv.Atoi(field(rec, colOPISID))
		if err != nil {
			zap.L().Warn("ingest: bad opis id, skipping row", zap.Int("line", line))
			continue
		}
		if _, dup := seen[opisID]; dup {
			continue
		}

		price, err := strconv.ParseFloat(field(rec, colPrice), 64)
		if err != nil {
			zap.L().Warn("ingest: bad price, skipping row",
				zap.Int("line", line),
				zap.Int("opis_id", opisID),
			)
			continue
		}

		var rackID *int
		if raw := field(rec, colRackID); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				rackID = &v
			}
		}

		addr, city, state := geocode.NormalizeComponents(
			field(rec, colAddress), field(rec, colCity), field(rec, colState))

		seen[opisID] = struct{}{}
		stations = append(stations, station.Station{
			OPISID:      opisID,
			Name:        geocode.CleanPiece(field(rec, colName)),
			Address:     addr,
			City:        city,
			State:       state,
			RackID:      rackID,
			RetailPrice: price,
		})
	}

	return stations, nil
}
