package values

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/knowbase/wikibase/pkg/wikibase/errors"
	"github.com/knowbase/wikibase/pkg/wikibase/types"
)

const (
	TypeString          string = "string"
	TypeMonolingualText string = "monolingualtext"
	TypeQuantity        string = "quantity"
	TypeTime            string = "time"
	TypeGlobeCoordinate string = "globecoordinate"
	TypeEntityID        string = "wikibase-entityid"
)

// DefaultWikibaseURL is used to expand bare entity ids into concept
// URIs, e.g. for quantity units.
const DefaultWikibaseURL string = "http://www.wikidata.org/entity/"

// GregorianCalendar is the default calendar model for time values.
const GregorianCalendar string = DefaultWikibaseURL + "Q1985727"

// EarthGlobe is the default globe for coordinate values.
const EarthGlobe string = DefaultWikibaseURL + "Q2"

type envelope struct {
	Value json.RawMessage `json:"value"`
	Type  string          `json:"type"`
}

// StringValue holds a plain string. Datatypes such as external-id, url,
// commons-media, geo-shape, math and musical-notation all use this
// value type on the wire; the snak's datatype field tells them apart.
type StringValue struct {
	Val string
}

func NewStringValue(value string) StringValue {
	return StringValue{Val: value}
}

func (v StringValue) Type() string { return TypeString }
func (v StringValue) Value() any   { return v.Val }

func (v StringValue) Equal(other types.DataValue) bool {
	o, ok := other.(StringValue)
	return ok && o.Val == v.Val
}

func (v StringValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeOf(v.Val, TypeString))
}

// MonolingualTextValue holds a string in a specific language.
type MonolingualTextValue struct {
	Text     string
	Language string
}

func NewMonolingualTextValue(language, text string) (MonolingualTextValue, error) {
	if !types.IsLanguageTag(language) {
		return MonolingualTextValue{}, errors.NewValidationError("datavalue.value.language", language)
	}
	return MonolingualTextValue{Text: text, Language: language}, nil
}

func (v MonolingualTextValue) Type() string { return TypeMonolingualText }
func (v MonolingualTextValue) Value() any   { return v.Text }

func (v MonolingualTextValue) Equal(other types.DataValue) bool {
	o, ok := other.(MonolingualTextValue)
	return ok && o == v
}

func (v MonolingualTextValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeOf(monolingualPayload{Text: v.Text, Language: v.Language}, TypeMonolingualText))
}

type monolingualPayload struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// QuantityValue holds a decimal amount with a unit and optional bounds.
// Amounts keep the wire's explicit sign, e.g. "+34.5".
type QuantityValue struct {
	Amount     string
	Unit       string
	UpperBound *string
	LowerBound *string
}

type QuantityDecoratorFunc func(qv *QuantityValue)

// Unit sets the unit to the concept URI of the given entity id, or to
// the value verbatim when it is already a URI (or the unitless "1").
func Unit(unit string) QuantityDecoratorFunc {
	return func(qv *QuantityValue) {
		if strings.HasPrefix(unit, "Q") {
			unit = DefaultWikibaseURL + unit
		}
		qv.Unit = unit
	}
}

func Bounds(lower, upper string) QuantityDecoratorFunc {
	return func(qv *QuantityValue) {
		l := signedAmount(lower)
		u := signedAmount(upper)
		qv.LowerBound = &l
		qv.UpperBound = &u
	}
}

func NewQuantityValue(amount string, decorators ...QuantityDecoratorFunc) (QuantityValue, error) {
	qv := QuantityValue{
		Amount: signedAmount(amount),
		Unit:   "1",
	}

	for _, decorator := range decorators {
		decorator(&qv)
	}

	if !validAmount(qv.Amount) {
		return QuantityValue{}, errors.NewValidationError("datavalue.value.amount", amount)
	}
	if qv.LowerBound != nil && !validAmount(*qv.LowerBound) {
		return QuantityValue{}, errors.NewValidationError("datavalue.value.lowerBound", *qv.LowerBound)
	}
	if qv.UpperBound != nil && !validAmount(*qv.UpperBound) {
		return QuantityValue{}, errors.NewValidationError("datavalue.value.upperBound", *qv.UpperBound)
	}

	return qv, nil
}

func signedAmount(amount string) string {
	if amount == "" || amount[0] == '+' || amount[0] == '-' {
		return amount
	}
	return "+" + amount
}

func validAmount(amount string) bool {
	if len(amount) < 2 || (amount[0] != '+' && amount[0] != '-') {
		return false
	}
	_, err := strconv.ParseFloat(amount[1:], 64)
	return err == nil
}

func (v QuantityValue) Type() string { return TypeQuantity }
func (v QuantityValue) Value() any   { return v.Amount }

func (v QuantityValue) Equal(other types.DataValue) bool {
	o, ok := other.(QuantityValue)
	if !ok || o.Amount != v.Amount || o.Unit != v.Unit {
		return false
	}
	return equalBound(o.UpperBound, v.UpperBound) && equalBound(o.LowerBound, v.LowerBound)
}

func equalBound(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (v QuantityValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeOf(quantityPayload{
		Amount:     v.Amount,
		Unit:       v.Unit,
		UpperBound: v.UpperBound,
		LowerBound: v.LowerBound,
	}, TypeQuantity))
}

type quantityPayload struct {
	Amount     string  `json:"amount"`
	Unit       string  `json:"unit"`
	UpperBound *string `json:"upperBound,omitempty"`
	LowerBound *string `json:"lowerBound,omitempty"`
}

// TimeValue holds a point in time in the store's ISO-like format, e.g.
// "+2001-01-02T00:00:00Z", together with precision and calendar model.
type TimeValue struct {
	Time          string
	Timezone      int
	Before        int
	After         int
	Precision     int
	CalendarModel string
}

// Day-level precision per the store's data model.
const PrecisionDay int = 11

var timePattern = regexp.MustCompile(`^[+-][0-9]{1,16}-(?:1[0-2]|0[1-9])-(?:3[01]|0[1-9]|[12][0-9])T(?:2[0-3]|[01][0-9]):[0-5][0-9]:[0-5][0-9]Z$`)

type TimeDecoratorFunc func(tv *TimeValue)

func Precision(precision int) TimeDecoratorFunc {
	return func(tv *TimeValue) {
		tv.Precision = precision
	}
}

func CalendarModel(calendarModel string) TimeDecoratorFunc {
	return func(tv *TimeValue) {
		if strings.HasPrefix(calendarModel, "Q") {
			calendarModel = DefaultWikibaseURL + calendarModel
		}
		tv.CalendarModel = calendarModel
	}
}

func NewTimeValue(timestamp string, decorators ...TimeDecoratorFunc) (TimeValue, error) {
	if timestamp != "" && timestamp[0] != '+' && timestamp[0] != '-' {
		timestamp = "+" + timestamp
	}

	if !timePattern.MatchString(timestamp) {
		return TimeValue{}, errors.NewValidationError("datavalue.value.time", timestamp)
	}

	tv := TimeValue{
		Time:          timestamp,
		Precision:     PrecisionDay,
		CalendarModel: GregorianCalendar,
	}

	for _, decorator := range decorators {
		decorator(&tv)
	}

	if tv.Precision < 0 || tv.Precision > 14 {
		return TimeValue{}, errors.NewValidationError("datavalue.value.precision", strconv.Itoa(tv.Precision))
	}

	return tv, nil
}

func (v TimeValue) Type() string { return TypeTime }
func (v TimeValue) Value() any   { return v.Time }

func (v TimeValue) Equal(other types.DataValue) bool {
	o, ok := other.(TimeValue)
	return ok && o == v
}

func (v TimeValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeOf(timePayload{
		Time:          v.Time,
		Timezone:      v.Timezone,
		Before:        v.Before,
		After:         v.After,
		Precision:     v.Precision,
		CalendarModel: v.CalendarModel,
	}, TypeTime))
}

type timePayload struct {
	Time          string `json:"time"`
	Timezone      int    `json:"timezone"`
	Before        int    `json:"before"`
	After         int    `json:"after"`
	Precision     int    `json:"precision"`
	CalendarModel string `json:"calendarmodel"`
}

// GlobeCoordinateValue holds a position on a globe.
type GlobeCoordinateValue struct {
	Latitude  float64
	Longitude float64
	Precision float64
	Globe     string
}

func NewGlobeCoordinateValue(latitude, longitude, precision float64) (GlobeCoordinateValue, error) {
	if latitude < -90 || latitude > 90 {
		return GlobeCoordinateValue{}, errors.NewValidationError("datavalue.value.latitude", fmt.Sprintf("%f", latitude))
	}
	if longitude < -180 || longitude > 180 {
		return GlobeCoordinateValue{}, errors.NewValidationError("datavalue.value.longitude", fmt.Sprintf("%f", longitude))
	}

	return GlobeCoordinateValue{
		Latitude:  latitude,
		Longitude: longitude,
		Precision: precision,
		Globe:     EarthGlobe,
	}, nil
}

func (v GlobeCoordinateValue) Type() string { return TypeGlobeCoordinate }
func (v GlobeCoordinateValue) Value() any   { return [2]float64{v.Latitude, v.Longitude} }

func (v GlobeCoordinateValue) Equal(other types.DataValue) bool {
	o, ok := other.(GlobeCoordinateValue)
	return ok && o == v
}

func (v GlobeCoordinateValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeOf(globePayload{
		Latitude:  v.Latitude,
		Longitude: v.Longitude,
		Precision: v.Precision,
		Globe:     v.Globe,
	}, TypeGlobeCoordinate))
}

type globePayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Precision float64 `json:"precision"`
	Globe     string  `json:"globe"`
}

// EntityIDValue references another entity by id.
type EntityIDValue struct {
	ID         string
	EntityType types.EntityKind
	NumericID  int64
}

func NewEntityIDValue(id string) (EntityIDValue, error) {
	kind, ok := types.KindOfID(id)
	if !ok {
		return EntityIDValue{}, errors.NewValidationError("datavalue.value.id", id)
	}

	v := EntityIDValue{ID: id, EntityType: kind}

	// form and sense ids are compound, they carry no single numeric id
	if kind == types.KindItem || kind == types.KindProperty || kind == types.KindLexeme {
		v.NumericID, _ = strconv.ParseInt(id[1:], 10, 64)
	}

	return v, nil
}

func (v EntityIDValue) Type() string { return TypeEntityID }
func (v EntityIDValue) Value() any   { return v.ID }

func (v EntityIDValue) Equal(other types.DataValue) bool {
	o, ok := other.(EntityIDValue)
	return ok && o.ID == v.ID
}

func (v EntityIDValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeOf(entityIDPayload{
		EntityType: string(v.EntityType),
		NumericID:  v.NumericID,
		ID:         v.ID,
	}, TypeEntityID))
}

type entityIDPayload struct {
	EntityType string `json:"entity-type"`
	NumericID  int64  `json:"numeric-id,omitempty"`
	ID         string `json:"id"`
}

// OpaqueValue preserves a datavalue of a type this package does not
// understand. The raw payload is carried unchanged so that round-trips
// never lose information.
type OpaqueValue struct {
	typeTag string
	raw     json.RawMessage
}

func NewOpaqueValue(typeTag string, raw []byte) OpaqueValue {
	return OpaqueValue{typeTag: typeTag, raw: append([]byte(nil), raw...)}
}

func (v OpaqueValue) Type() string { return v.typeTag }
func (v OpaqueValue) Value() any   { return v.raw }

func (v OpaqueValue) Equal(other types.DataValue) bool {
	o, ok := other.(OpaqueValue)
	return ok && o.typeTag == v.typeTag && bytes.Equal(compacted(o.raw), compacted(v.raw))
}

func compacted(raw []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

func (v OpaqueValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelope{Value: v.raw, Type: v.typeTag})
}

func envelopeOf(payload any, typeTag string) envelope {
	raw, _ := json.Marshal(payload)
	return envelope{Value: raw, Type: typeTag}
}

// UnmarshalV decodes one wire datavalue into its typed variant. Unknown
// datavalue types decode to the opaque variant instead of failing.
func UnmarshalV(body []byte) (types.DataValue, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.NewDecodeError("datavalue", err.Error())
	}

	if env.Type == "" {
		return nil, errors.NewDecodeError("datavalue.type", "missing")
	}
	if len(env.Value) == 0 {
		return nil, errors.NewDecodeError("datavalue.value", "missing")
	}

	switch env.Type {
	case TypeString:
		var s string
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return nil, errors.NewDecodeError("datavalue.value", err.Error())
		}
		return StringValue{Val: s}, nil

	case TypeMonolingualText:
		var p monolingualPayload
		if err := json.Unmarshal(env.Value, &p); err != nil {
			return nil, errors.NewDecodeError("datavalue.value", err.Error())
		}
		if p.Language == "" {
			return nil, errors.NewDecodeError("datavalue.value.language", "missing")
		}
		return MonolingualTextValue{Text: p.Text, Language: p.Language}, nil

	case TypeQuantity:
		var p quantityPayload
		if err := json.Unmarshal(env.Value, &p); err != nil {
			return nil, errors.NewDecodeError("datavalue.value", err.Error())
		}
		if !validAmount(p.Amount) {
			return nil, errors.NewDecodeError("datavalue.value.amount", p.Amount)
		}
		return QuantityValue{
			Amount:     p.Amount,
			Unit:       p.Unit,
			UpperBound: p.UpperBound,
			LowerBound: p.LowerBound,
		}, nil

	case TypeTime:
		var p timePayload
		if err := json.Unmarshal(env.Value, &p); err != nil {
			return nil, errors.NewDecodeError("datavalue.value", err.Error())
		}
		if !timePattern.MatchString(p.Time) {
			return nil, errors.NewDecodeError("datavalue.value.time", p.Time)
		}
		return TimeValue{
			Time:          p.Time,
			Timezone:      p.Timezone,
			Before:        p.Before,
			After:         p.After,
			Precision:     p.Precision,
			CalendarModel: p.CalendarModel,
		}, nil

	case TypeGlobeCoordinate:
		var p globePayload
		if err := json.Unmarshal(env.Value, &p); err != nil {
			return nil, errors.NewDecodeError("datavalue.value", err.Error())
		}
		return GlobeCoordinateValue{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Precision: p.Precision,
			Globe:     p.Globe,
		}, nil

	case TypeEntityID:
		var p entityIDPayload
		if err := json.Unmarshal(env.Value, &p); err != nil {
			return nil, errors.NewDecodeError("datavalue.value", err.Error())
		}
		v := EntityIDValue{
			ID:         p.ID,
			EntityType: types.EntityKind(p.EntityType),
			NumericID:  p.NumericID,
		}
		if v.ID == "" {
			// older payloads only carry entity-type plus numeric id
			switch v.EntityType {
			case types.KindItem:
				v.ID = "Q" + strconv.FormatInt(p.NumericID, 10)
			case types.KindProperty:
				v.ID = "P" + strconv.FormatInt(p.NumericID, 10)
			case types.KindLexeme:
				v.ID = "L" + strconv.FormatInt(p.NumericID, 10)
			default:
				return nil, errors.NewDecodeError("datavalue.value.id", "missing")
			}
		}
		return v, nil
	}

	return NewOpaqueValue(env.Type, env.Value), nil
}
