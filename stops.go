package gtfs2osm

import (
	"archive/zip"
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// TransitStop is one row of the GTFS stop table.
type TransitStop struct {
	ID   string
	Name string
	Lat  float64
	Lon  float64
}

// MapStop is one point feature from the Overpass extract.
type MapStop struct {
	ID   string
	Name string
	Lat  float64
	Lon  float64
}

var gtfsStopColumns = []string{"stop_id", "stop_name", "stop_lat", "stop_lon"}

// LoadGTFSStops reads the stop table from a GTFS zip, or from a sqlite
// database built from one when path ends in ".db".
func LoadGTFSStops(path string) ([]TransitStop, error) {
	if path == "" {
		panic("Missing path")
	}

	var stops []TransitStop
	var err error
	if strings.HasSuffix(path, ".db") {
		stops, err = loadStopsFromDB(path)
	} else {
		stops, err = loadStopsFromZip(path)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(stops))
	for _, stop := range stops {
		if stop.ID == "" {
			return nil, fmt.Errorf("%w: stop with empty stop_id", ErrFeedParse)
		}
		if _, ok := seen[stop.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate stop_id %s", ErrFeedParse, stop.ID)
		}
		seen[stop.ID] = struct{}{}
		if err := checkCoordinate(stop.Lat, stop.Lon); err != nil {
			return nil, fmt.Errorf("%w: stop %s: %v", ErrFeedParse, stop.ID, err)
		}
	}

	slog.Info(fmt.Sprintf("Loaded %d GTFS stops from %s", len(stops), path))
	return stops, nil
}

func loadStopsFromZip(path string) ([]TransitStop, error) {
	inputZip, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedParse, err)
	}
	defer func() { _ = inputZip.Close() }()

	var stopsFile *zip.File
	for _, f := range inputZip.File {
		if strings.EqualFold(f.Name, "stops.txt") {
			stopsFile = f
			break
		}
	}
	if stopsFile == nil {
		return nil, fmt.Errorf("%w: no stops.txt in %s", ErrFeedParse, path)
	}

	inputF, err := stopsFile.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedParse, err)
	}
	defer func() { _ = inputF.Close() }()

	inputCSV := csv.NewReader(inputF)
	inputCSV.FieldsPerRecord = -1 // Allow variable numbers of fields

	header, err := inputCSV.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read stops.txt header: %v", ErrFeedParse, err)
	}

	colIdx := make(map[string]int, len(gtfsStopColumns))
	for i, col := range header {
		colIdx[strings.TrimSpace(col)] = i
	}
	for _, col := range gtfsStopColumns {
		if _, ok := colIdx[col]; !ok {
			return nil, fmt.Errorf("%w: stops.txt is missing column %s", ErrFeedParse, col)
		}
	}

	var stops []TransitStop
	for {
		row, err := inputCSV.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%w: read stops.txt: %v", ErrFeedParse, err)
		}

		field := func(col string) string {
			i := colIdx[col]
			if i >= len(row) {
				return ""
			}
			return row[i]
		}

		stop, err := parseStopRow(field("stop_id"), field("stop_name"), field("stop_lat"), field("stop_lon"))
		if err != nil {
			return nil, err
		}
		stops = append(stops, stop)
	}
	return stops, nil
}

func loadStopsFromDB(path string) ([]TransitStop, error) {
	db, err := sqlite.OpenConn(path, sqlite.SQLITE_OPEN_READONLY)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedParse, err)
	}
	defer func() { _ = db.Close() }()

	var stops []TransitStop
	var rowErr error
	err = sqlitex.Exec(db, "SELECT stop_id, stop_name, stop_lat, stop_lon FROM stops", func(stmt *sqlite.Stmt) error {
		stop, err := parseStopRow(
			stmt.GetText("stop_id"), stmt.GetText("stop_name"),
			stmt.GetText("stop_lat"), stmt.GetText("stop_lon"))
		if err != nil {
			rowErr = err
			return err
		}
		stops = append(stops, stop)
		return nil
	})
	if rowErr != nil {
		return nil, rowErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedParse, err)
	}
	return stops, nil
}

func parseStopRow(id, name, latText, lonText string) (TransitStop, error) {
	lat, err := strconv.ParseFloat(latText, 64)
	if err != nil {
		return TransitStop{}, fmt.Errorf("%w: stop %s: bad stop_lat %q", ErrFeedParse, id, latText)
	}
	lon, err := strconv.ParseFloat(lonText, 64)
	if err != nil {
		return TransitStop{}, fmt.Errorf("%w: stop %s: bad stop_lon %q", ErrFeedParse, id, lonText)
	}
	return TransitStop{ID: id, Name: name, Lat: lat, Lon: lon}, nil
}
