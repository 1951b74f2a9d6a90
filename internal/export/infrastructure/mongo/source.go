package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	export "quarterhour-export/internal/export/domain"
)

// Field names of the quarter-hour documents.
const (
	FieldDaySlot  = "MEAS_YMDD_ID"
	FieldPOD      = "POD"
	FieldMeasType = "MEAS_TYPE"
	FieldValue    = "val"
	FieldSlot     = "id"
)

// Document is one stored quarter-hour reading. DaySlot is "yyyyMMdd_NN".
// A null val decodes to a nil Value. Slot carries the optional "id" field,
// stored as a string or a number depending on the loader.
type Document struct {
	DaySlot  string        `bson:"MEAS_YMDD_ID"`
	POD      string        `bson:"POD"`
	MeasType string        `bson:"MEAS_TYPE"`
	Value    *float64      `bson:"val"`
	Slot     bson.RawValue `bson:"id,omitempty"`
}

// Tuple converts the document to a measurement tuple. It reports false when
// the document carries no value, which leaves the cell missing.
func (d Document) Tuple() (export.MeasurementTuple, bool, error) {
	if len(d.DaySlot) < len(export.DayKeyLayout) {
		return export.MeasurementTuple{}, false, fmt.Errorf("%w: %q", export.ErrInvalidDayKey, d.DaySlot)
	}
	dayKey := d.DaySlot[:len(export.DayKeyLayout)]
	_, slotKey, _ := strings.Cut(d.DaySlot, "_")
	if slotKey == "" {
		slotKey = rawSlotKey(d.Slot)
	}
	slot, err := export.ParseSlotKey(slotKey)
	if err != nil {
		return export.MeasurementTuple{}, false, err
	}
	if d.Value == nil {
		return export.MeasurementTuple{}, false, nil
	}
	return export.MeasurementTuple{
		DayKey:   dayKey,
		Slot:     slot,
		POD:      d.POD,
		MeasType: d.MeasType,
		Value:    *d.Value,
	}, true, nil
}

func rawSlotKey(v bson.RawValue) string {
	switch v.Type {
	case bson.TypeString:
		s, _ := v.StringValueOK()
		return s
	case bson.TypeInt32:
		n, _ := v.Int32OK()
		return strconv.Itoa(int(n))
	case bson.TypeInt64:
		n, _ := v.Int64OK()
		return strconv.FormatInt(n, 10)
	case bson.TypeDouble:
		f, _ := v.DoubleOK()
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return ""
	}
}

// Source reads measurements from the <fileName>_<magnitude> collection.
type Source struct {
	db      *mongo.Database
	timeout time.Duration
}

// SourceOption configures the source.
type SourceOption func(*Source)

// WithQueryTimeout bounds each query; zero disables the bound.
func WithQueryTimeout(timeout time.Duration) SourceOption {
	return func(s *Source) {
		if s != nil && timeout >= 0 {
			s.timeout = timeout
		}
	}
}

// NewSource constructs a source.
func NewSource(db *mongo.Database, opts ...SourceOption) (*Source, error) {
	if db == nil {
		return nil, errors.New("mongo source: nil database")
	}
	s := &Source{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DistinctPODs groups by POD over the day range and sorts by identifier.
func (s *Source) DistinctPODs(ctx context.Context, sel export.Selection, fromDayKey, toDayKey string) ([]string, error) {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: FieldDaySlot, Value: dayRange(fromDayKey, toDayKey)}}}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$" + FieldPOD}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cursor, err := s.collection(sel).Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, fmt.Errorf("mongo source: distinct pods: %w", err)
	}
	defer cursor.Close(ctx)

	var pods []string
	for cursor.Next(ctx) {
		var row struct {
			POD string `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("mongo source: decode pod: %w", err)
		}
		if row.POD != "" {
			pods = append(pods, row.POD)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo source: distinct pods: %w", err)
	}
	return pods, nil
}

// HasMeasurements probes for a single matching document.
func (s *Source) HasMeasurements(ctx context.Context, sel export.Selection, fromDayKey, toDayKey string, pods []string) (bool, error) {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	opts := options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}})
	err := s.collection(sel).FindOne(ctx, measurementFilter(fromDayKey, toDayKey, pods), opts).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mongo source: probe: %w", err)
	}
	return true, nil
}

// StreamMeasurements runs the match/project/sort pipeline and decodes the
// cursor one document at a time.
func (s *Source) StreamMeasurements(ctx context.Context, sel export.Selection, fromDayKey, toDayKey string, pods []string, fn func(export.MeasurementTuple) error) error {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: measurementFilter(fromDayKey, toDayKey, pods)}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: FieldDaySlot, Value: 1},
			{Key: FieldPOD, Value: 1},
			{Key: FieldMeasType, Value: 1},
			{Key: FieldValue, Value: 1},
			{Key: FieldSlot, Value: 1},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: FieldDaySlot, Value: 1},
			{Key: FieldPOD, Value: 1},
			{Key: FieldMeasType, Value: 1},
		}}},
	}
	cursor, err := s.collection(sel).Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return fmt.Errorf("mongo source: measurements: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc Document
		if err := cursor.Decode(&doc); err != nil {
			return fmt.Errorf("mongo source: decode measurement: %w", err)
		}
		tuple, ok, err := doc.Tuple()
		if err != nil {
			return fmt.Errorf("mongo source: %w", err)
		}
		if !ok {
			continue
		}
		if err := fn(tuple); err != nil {
			return err
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("mongo source: measurements: %w", err)
	}
	return nil
}

func (s *Source) collection(sel export.Selection) *mongo.Collection {
	return s.db.Collection(sel.Name())
}

func (s *Source) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// dayRange matches "yyyyMMdd_NN" keys of days in [from, to).
func dayRange(fromDayKey, toDayKey string) bson.D {
	return bson.D{{Key: "$gte", Value: fromDayKey}, {Key: "$lt", Value: toDayKey}}
}

func measurementFilter(fromDayKey, toDayKey string, pods []string) bson.D {
	return bson.D{
		{Key: FieldDaySlot, Value: dayRange(fromDayKey, toDayKey)},
		{Key: FieldPOD, Value: bson.D{{Key: "$in", Value: pods}}},
	}
}
