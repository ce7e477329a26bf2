package gtfs2osm

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CorrelationRecord is one confirmed pairing of a GTFS stop with the
// OSM feature representing the same physical stop.
type CorrelationRecord struct {
	GTFSStopID   string
	GTFSStopName string
	OSMID        string
	OSMName      string
}

// Row format: gtfs id, gtfs name, osm id, osm name
var correlationHeader = []string{"gtfs_stop_id", "gtfs_stop_name", "osm:id", "osm:name"}

// CorrelationStore holds the confirmed correlations, backed by a CSV
// file. At most one correlation per gtfs_stop_id. The file is only
// opened for the duration of a single append, never held across the
// wait for a review decision.
type CorrelationStore struct {
	path    string
	records []CorrelationRecord
	byGTFS  map[string]int
	byOSM   map[string]struct{}
}

// LoadCorrelationStore reads the correlation file at path. A missing
// file is a first run and yields an empty store.
func LoadCorrelationStore(path string) (*CorrelationStore, error) {
	if path == "" {
		panic("Missing path")
	}

	s := &CorrelationStore{
		path:   path,
		byGTFS: make(map[string]int),
		byOSM:  make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	if len(data) == 0 {
		return s, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrCorruptStore, err)
	}
	if len(header) != len(correlationHeader) {
		return nil, fmt.Errorf("%w: expected columns %v, got %v", ErrCorruptStore, correlationHeader, header)
	}
	for i, col := range correlationHeader {
		if header[i] != col {
			return nil, fmt.Errorf("%w: expected columns %v, got %v", ErrCorruptStore, correlationHeader, header)
		}
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
		}

		rec := CorrelationRecord{
			GTFSStopID:   row[0],
			GTFSStopName: row[1],
			OSMID:        row[2],
			OSMName:      row[3],
		}
		if rec.GTFSStopID == "" {
			return nil, fmt.Errorf("%w: row with empty gtfs_stop_id", ErrCorruptStore)
		}
		if _, ok := s.byGTFS[rec.GTFSStopID]; ok {
			return nil, fmt.Errorf("%w: duplicate gtfs_stop_id %s", ErrCorruptStore, rec.GTFSStopID)
		}
		s.byGTFS[rec.GTFSStopID] = len(s.records)
		s.byOSM[rec.OSMID] = struct{}{}
		s.records = append(s.records, rec)
	}

	slog.Info(fmt.Sprintf("Loaded %d correlations from %s", len(s.records), path))
	return s, nil
}

// Contains reports whether a correlation for the GTFS stop exists.
func (s *CorrelationStore) Contains(gtfsStopID string) bool {
	_, ok := s.byGTFS[gtfsStopID]
	return ok
}

// ContainsMapStop reports whether the OSM feature is already used by
// some correlation.
func (s *CorrelationStore) ContainsMapStop(osmID string) bool {
	_, ok := s.byOSM[osmID]
	return ok
}

// Len returns the number of correlations in the store.
func (s *CorrelationStore) Len() int {
	return len(s.records)
}

// All returns the correlations in insertion order.
func (s *CorrelationStore) All() []CorrelationRecord {
	out := make([]CorrelationRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Append persists rec and adds it to the store. The row, and the
// header on first write, go to disk in a single write followed by a
// sync, so an interrupted process leaves either the prior file or the
// prior file plus the whole new row. The in-memory set is only updated
// once the write has succeeded.
func (s *CorrelationStore) Append(rec CorrelationRecord) error {
	if rec.GTFSStopID == "" {
		return fmt.Errorf("correlation record with empty gtfs_stop_id")
	}
	if s.Contains(rec.GTFSStopID) {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, rec.GTFSStopID)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	writeHeader, err := s.needsHeader()
	if err != nil {
		return err
	}
	if writeHeader {
		if err := w.Write(correlationHeader); err != nil {
			return err
		}
	}
	if err := w.Write([]string{rec.GTFSStopID, rec.GTFSStopName, rec.OSMID, rec.OSMName}); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	slog.Info("Wrote correlation row", "gtfs_stop_id", rec.GTFSStopID, "osm_id", rec.OSMID)
	s.byGTFS[rec.GTFSStopID] = len(s.records)
	s.byOSM[rec.OSMID] = struct{}{}
	s.records = append(s.records, rec)
	return nil
}

func (s *CorrelationStore) needsHeader() (bool, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	} else if err != nil {
		return false, err
	}
	return info.Size() == 0, nil
}
