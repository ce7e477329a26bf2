package gtfs2osm

import "errors"

var (
	// ErrFeedParse means the GTFS input could not be turned into a stop table.
	ErrFeedParse = errors.New("invalid GTFS feed")
	// ErrMapDataParse means the Overpass extract could not be turned into a stop table.
	ErrMapDataParse = errors.New("invalid map data extract")
	// ErrCorruptStore means the correlation file exists but is not readable as one.
	ErrCorruptStore = errors.New("corrupt correlation file")
	// ErrInvalidCoordinate means a latitude/longitude is NaN or out of WGS84 range.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrDuplicateKey means the store already holds a correlation for that stop.
	ErrDuplicateKey = errors.New("stop already correlated")
)
