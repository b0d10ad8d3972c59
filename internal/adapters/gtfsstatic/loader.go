// Package gtfsstatic builds process-local schedule indexes from a GTFS
// static ZIP archive. It never writes what it learns to a database: the
// indexes exist purely to resolve identifiers and provide a handful of
// lookups the live pipeline needs every poll tick.
package gtfsstatic

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/transitiq/nervecentre/internal/core/domain"
)

// Loader holds the four immutable schedule indexes, built once at startup
// and read many times afterward.
type Loader struct {
	mu sync.RWMutex

	routeShortName map[string]string            // route_id -> short_name
	tripRoute      map[string]string             // trip_id -> route_id
	stops          map[string]domain.StopInfo    // stop_id -> info
	shapePoints    map[string][]domain.ShapePoint // shape_id -> ordered points
	tripShape      map[string]string             // trip_id -> shape_id
	routeShapes    map[string]map[string]struct{} // route_id -> {shape_id}
	routeStops     map[string]map[string]struct{} // route_id -> {stop_id}
}

// New returns an empty Loader. Call Load to populate it.
func New() *Loader {
	return &Loader{
		routeShortName: map[string]string{},
		tripRoute:      map[string]string{},
		stops:          map[string]domain.StopInfo{},
		shapePoints:    map[string][]domain.ShapePoint{},
		tripShape:      map[string]string{},
		routeShapes:    map[string]map[string]struct{}{},
		routeStops:     map[string]map[string]struct{}{},
	}
}

// Load downloads one GTFS static ZIP over HTTP (following redirects, 60s
// timeout) and parses its members into the in-memory indexes. A missing
// member logs a warning and leaves its index empty rather than failing the
// whole load; a malformed row is skipped rather than aborting its file.
func (l *Loader) Load(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 60 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog download: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read catalog body: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return fmt.Errorf("open catalog zip: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.loadRoutes(zr)
	l.loadTrips(zr)
	l.loadStops(zr)
	l.loadStopTimes(zr)
	l.loadShapes(zr)
	l.buildRouteShapes()

	slog.Info("catalog.loaded",
		"routes", len(l.routeShortName),
		"trips", len(l.tripRoute),
		"stops", len(l.stops),
		"shapes", len(l.shapePoints),
	)
	return nil
}

func (l *Loader) loadRoutes(zr *zip.Reader) {
	records, cols, err := openCSV(zr, "routes.txt")
	if err != nil {
		slog.Warn("catalog.missing_member", "file", "routes.txt", "error", err)
		return
	}
	for _, rec := range records {
		routeID := getField(rec, cols, "route_id")
		if routeID == "" {
			continue
		}
		shortName := getField(rec, cols, "route_short_name")
		if shortName == "" {
			shortName = getField(rec, cols, "route_long_name")
		}
		if shortName == "" {
			shortName = routeID
		}
		l.routeShortName[routeID] = shortName
	}
}

func (l *Loader) loadTrips(zr *zip.Reader) {
	records, cols, err := openCSV(zr, "trips.txt")
	if err != nil {
		slog.Warn("catalog.missing_member", "file", "trips.txt", "error", err)
		return
	}
	for _, rec := range records {
		tripID := getField(rec, cols, "trip_id")
		routeID := getField(rec, cols, "route_id")
		if tripID == "" || routeID == "" {
			continue
		}
		l.tripRoute[tripID] = routeID
		if shapeID := getField(rec, cols, "shape_id"); shapeID != "" {
			l.tripShape[tripID] = shapeID
		}
	}
}

func (l *Loader) loadStops(zr *zip.Reader) {
	records, cols, err := openCSV(zr, "stops.txt")
	if err != nil {
		slog.Warn("catalog.missing_member", "file", "stops.txt", "error", err)
		return
	}
	for _, rec := range records {
		stopID := getField(rec, cols, "stop_id")
		if stopID == "" {
			continue
		}
		lat, errLat := strconv.ParseFloat(getField(rec, cols, "stop_lat"), 64)
		lon, errLon := strconv.ParseFloat(getField(rec, cols, "stop_lon"), 64)
		if errLat != nil || errLon != nil {
			continue
		}
		l.stops[stopID] = domain.StopInfo{
			Name:      getField(rec, cols, "stop_name"),
			Latitude:  lat,
			Longitude: lon,
		}
	}
}

func (l *Loader) loadStopTimes(zr *zip.Reader) {
	records, cols, err := openCSV(zr, "stop_times.txt")
	if err != nil {
		slog.Warn("catalog.missing_member", "file", "stop_times.txt", "error", err)
		return
	}
	for _, rec := range records {
		tripID := getField(rec, cols, "trip_id")
		stopID := getField(rec, cols, "stop_id")
		if tripID == "" || stopID == "" {
			continue
		}
		routeID, ok := l.tripRoute[tripID]
		if !ok {
			continue
		}
		set, ok := l.routeStops[routeID]
		if !ok {
			set = map[string]struct{}{}
			l.routeStops[routeID] = set
		}
		set[stopID] = struct{}{}
	}
}

func (l *Loader) loadShapes(zr *zip.Reader) {
	records, cols, err := openCSV(zr, "shapes.txt")
	if err != nil {
		slog.Warn("catalog.missing_member", "file", "shapes.txt", "error", err)
		return
	}
	for _, rec := range records {
		shapeID := getField(rec, cols, "shape_id")
		if shapeID == "" {
			continue
		}
		lat, errLat := strconv.ParseFloat(getField(rec, cols, "shape_pt_lat"), 64)
		lon, errLon := strconv.ParseFloat(getField(rec, cols, "shape_pt_lon"), 64)
		if errLat != nil || errLon != nil {
			continue
		}
		seq, _ := strconv.Atoi(getField(rec, cols, "shape_pt_sequence"))
		l.shapePoints[shapeID] = append(l.shapePoints[shapeID], domain.ShapePoint{
			Latitude: lat, Longitude: lon, Sequence: seq,
		})
	}
	for shapeID, pts := range l.shapePoints {
		sort.Slice(pts, func(i, j int) bool { return pts[i].Sequence < pts[j].Sequence })
		l.shapePoints[shapeID] = pts
	}
}

// buildRouteShapes joins trip_route_map with trip_shape_map, same as the
// route_id -> set<stop_id> join, to produce route_id -> {shape_id}.
func (l *Loader) buildRouteShapes() {
	for tripID, routeID := range l.tripRoute {
		shapeID, ok := l.tripShape[tripID]
		if !ok {
			continue
		}
		set, ok := l.routeShapes[routeID]
		if !ok {
			set = map[string]struct{}{}
			l.routeShapes[routeID] = set
		}
		set[shapeID] = struct{}{}
	}
}

func openCSV(zr *zip.Reader, name string) ([][]string, map[string]int, error) {
	var zf *zip.File
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, name) {
			zf = f
			break
		}
	}
	if zf == nil {
		return nil, nil, fmt.Errorf("%s not present in archive", name)
	}
	rc, err := zf.Open()
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // malformed row: skip
		}
		records = append(records, rec)
	}
	return records, cols, nil
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.TrimSpace(col)] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
