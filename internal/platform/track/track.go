// Package track reads recorded GPS tracks and replays them against a clock.
//
// The CSV format has a header row and the columns
// timestamp,latitude,longitude,speed_mps,accuracy_m. Timestamps are RFC 3339.
// speed_mps and accuracy_m may be empty; an empty speed is reported as -1.
package track

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"arrivalwatch/internal/platform/geo"
)

type Point struct {
	Timestamp time.Time
	Latitude  float64
	Longitude float64
	SpeedMPS  float64
	AccuracyM float64
}

var header = []string{"timestamp", "latitude", "longitude", "speed_mps", "accuracy_m"}

func Load(path string) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open track: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

func ReadCSV(r io.Reader) ([]Point, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var points []Point
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read track: %w", err)
		}
		line++
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), header[0]) {
			continue
		}
		point, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("track line %d: %w", line, err)
		}
		points = append(points, point)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("read track: no points")
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return points, nil
}

func parseRecord(record []string) (Point, error) {
	if len(record) < 3 {
		return Point{}, fmt.Errorf("expected at least 3 columns, got %d", len(record))
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(record[0]))
	if err != nil {
		return Point{}, fmt.Errorf("parse timestamp: %w", err)
	}
	lat, err := parseFloat(record[1], math.NaN())
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return Point{}, fmt.Errorf("invalid latitude %q", record[1])
	}
	lon, err := parseFloat(record[2], math.NaN())
	if err != nil || math.IsNaN(lon) || lon < -180 || lon > 180 {
		return Point{}, fmt.Errorf("invalid longitude %q", record[2])
	}
	point := Point{Timestamp: ts.UTC(), Latitude: lat, Longitude: lon, SpeedMPS: -1}
	if len(record) > 3 {
		if point.SpeedMPS, err = parseFloat(record[3], -1); err != nil {
			return Point{}, fmt.Errorf("invalid speed %q", record[3])
		}
	}
	if len(record) > 4 {
		if point.AccuracyM, err = parseFloat(record[4], 0); err != nil {
			return Point{}, fmt.Errorf("invalid accuracy %q", record[4])
		}
	}
	return point, nil
}

func parseFloat(raw string, empty float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return empty, nil
	}
	return strconv.ParseFloat(raw, 64)
}

// Replay maps wall-clock time onto a recorded track. Factor speeds the
// recording up; 1 replays in real time.
type Replay struct {
	points    []Point
	startedAt time.Time
	factor    float64
}

func NewReplay(points []Point, startedAt time.Time, factor float64) (*Replay, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("new replay: empty track")
	}
	if factor <= 0 {
		factor = 1
	}
	return &Replay{points: points, startedAt: startedAt, factor: factor}, nil
}

func (r *Replay) Duration() time.Duration {
	return time.Duration(float64(r.points[len(r.points)-1].Timestamp.Sub(r.points[0].Timestamp)) / r.factor)
}

// Done reports whether now is past the end of the recording.
func (r *Replay) Done(now time.Time) bool {
	return now.Sub(r.startedAt) >= r.Duration()
}

// At interpolates the position for now. The returned point carries now as
// its timestamp. Before the start and after the end it pins to the first or
// last point, reporting zero speed at the end.
func (r *Replay) At(now time.Time) Point {
	elapsed := time.Duration(float64(now.Sub(r.startedAt)) * r.factor)
	virtual := r.points[0].Timestamp.Add(elapsed)

	first, last := r.points[0], r.points[len(r.points)-1]
	if !virtual.After(first.Timestamp) {
		first.Timestamp = now
		return first
	}
	if !virtual.Before(last.Timestamp) {
		last.Timestamp = now
		last.SpeedMPS = 0
		return last
	}
	i := sort.Search(len(r.points), func(i int) bool { return r.points[i].Timestamp.After(virtual) })
	a, b := r.points[i-1], r.points[i]
	span := b.Timestamp.Sub(a.Timestamp).Seconds()
	f := 0.0
	if span > 0 {
		f = virtual.Sub(a.Timestamp).Seconds() / span
	}
	speed := a.SpeedMPS
	if speed < 0 && span > 0 {
		speed = geo.DistanceM(a.Latitude, a.Longitude, b.Latitude, b.Longitude) / span
	}
	return Point{
		Timestamp: now,
		Latitude:  a.Latitude + (b.Latitude-a.Latitude)*f,
		Longitude: a.Longitude + (b.Longitude-a.Longitude)*f,
		SpeedMPS:  speed,
		AccuracyM: a.AccuracyM,
	}
}

// Synthesize builds a straight-line track from start toward target at a
// constant speed, one point per step.
func Synthesize(startLat, startLon, targetLat, targetLon, speedMPS float64, step time.Duration, begin time.Time) []Point {
	total := geo.DistanceM(startLat, startLon, targetLat, targetLon)
	if speedMPS <= 0 || step <= 0 {
		return []Point{{Timestamp: begin, Latitude: startLat, Longitude: startLon, SpeedMPS: 0}}
	}
	stepM := speedMPS * step.Seconds()
	n := int(math.Ceil(total / stepM))
	points := make([]Point, 0, n+1)
	for i := 0; i <= n; i++ {
		f := math.Min(1, float64(i)*stepM/math.Max(total, 1))
		points = append(points, Point{
			Timestamp: begin.Add(time.Duration(i) * step),
			Latitude:  startLat + (targetLat-startLat)*f,
			Longitude: startLon + (targetLon-startLon)*f,
			SpeedMPS:  speedMPS,
			AccuracyM: 5,
		})
	}
	return points
}
