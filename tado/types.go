package tado

import (
	"encoding/json"
	"time"
)

// Vendor payloads. Every field is optional: absent or null JSON leaves the
// pointer nil and the slice empty.

type ZoneType string

const (
	ZoneTypeHeating         ZoneType = "HEATING"
	ZoneTypeHotWater        ZoneType = "HOT_WATER"
	ZoneTypeAirConditioning ZoneType = "AIR_CONDITIONING"
)

type Power string

const (
	PowerOn  Power = "ON"
	PowerOff Power = "OFF"
)

// IsOn reports whether p is ON
func (p Power) IsOn() bool { return p == PowerOn }

type BatteryState string

const (
	BatteryNormal BatteryState = "NORMAL"
	BatteryLow    BatteryState = "LOW"
)

type ACMode string

const (
	ACModeCool ACMode = "COOL"
	ACModeHeat ACMode = "HEAT"
	ACModeDry  ACMode = "DRY"
	ACModeFan  ACMode = "FAN"
	ACModeAuto ACMode = "AUTO"
)

type WeatherState string

type CallForHeat string

const (
	CallForHeatNone   CallForHeat = "NONE"
	CallForHeatLow    CallForHeat = "LOW"
	CallForHeatMedium CallForHeat = "MEDIUM"
	CallForHeatHigh   CallForHeat = "HIGH"
)

// Percent maps a heat-call level onto a heating power percentage
func (c CallForHeat) Percent() (float64, bool) {
	switch c {
	case CallForHeatNone:
		return 0, true
	case CallForHeatLow:
		return 33, true
	case CallForHeatMedium:
		return 66, true
	case CallForHeatHigh:
		return 100, true
	}
	return 0, false
}

type Temperature struct {
	Celsius    *float64 `json:"celsius,omitempty"`
	Fahrenheit *float64 `json:"fahrenheit,omitempty"`
}

type DataInterval struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

type TemperatureDataPoint struct {
	Celsius    *float64     `json:"celsius,omitempty"`
	Fahrenheit *float64     `json:"fahrenheit,omitempty"`
	Timestamp  *time.Time   `json:"timestamp,omitempty"`
	Type       *string      `json:"type,omitempty"`
	Precision  *Temperature `json:"precision,omitempty"`
}

type PercentageDataPoint struct {
	Type       *string    `json:"type,omitempty"`
	Percentage *float64   `json:"percentage,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

type PowerDataPoint struct {
	Type      *string    `json:"type,omitempty"`
	Value     *Power     `json:"value,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type WeatherStateDataPoint struct {
	Type      *string       `json:"type,omitempty"`
	Value     *WeatherState `json:"value,omitempty"`
	Timestamp *time.Time    `json:"timestamp,omitempty"`
}

type SensorDataPoints struct {
	InsideTemperature *TemperatureDataPoint `json:"insideTemperature,omitempty"`
	Humidity          *PercentageDataPoint  `json:"humidity,omitempty"`
}

type ActivityDataPoints struct {
	HeatingPower *PercentageDataPoint `json:"heatingPower,omitempty"`
	ACPower      *PowerDataPoint      `json:"acPower,omitempty"`
}

// ACSettingsBase holds the air-conditioning knobs shared by every AC setting
type ACSettingsBase struct {
	FanLevel        *string `json:"fanLevel,omitempty"`
	VerticalSwing   *string `json:"verticalSwing,omitempty"`
	HorizontalSwing *string `json:"horizontalSwing,omitempty"`
	Light           *string `json:"light,omitempty"`
}

// ZoneSetting is a zone's target setting. The AC base is embedded by value,
// so its fields sit flat beside the others on the wire.
type ZoneSetting struct {
	ACSettingsBase
	Type        *ZoneType    `json:"type,omitempty"`
	Power       *Power       `json:"power,omitempty"`
	Temperature *Temperature `json:"temperature,omitempty"`
	Mode        *ACMode      `json:"mode,omitempty"`
	IsBoost     *bool        `json:"isBoost,omitempty"`
}

// Day report series

type BooleanInterval struct {
	DataInterval
	Value *bool `json:"value,omitempty"`
}

type BooleanTimeSeries struct {
	TimeSeriesType *string           `json:"timeSeriesType,omitempty"`
	ValueType      *string           `json:"valueType,omitempty"`
	DataIntervals  []BooleanInterval `json:"dataIntervals,omitempty"`
}

type CallForHeatInterval struct {
	DataInterval
	Value *CallForHeat `json:"value,omitempty"`
}

type CallForHeatTimeSeries struct {
	TimeSeriesType *string               `json:"timeSeriesType,omitempty"`
	ValueType      *string               `json:"valueType,omitempty"`
	DataIntervals  []CallForHeatInterval `json:"dataIntervals,omitempty"`
}

type PowerInterval struct {
	DataInterval
	Value *Power `json:"value,omitempty"`
}

type PowerTimeSeries struct {
	TimeSeriesType *string         `json:"timeSeriesType,omitempty"`
	ValueType      *string         `json:"valueType,omitempty"`
	DataIntervals  []PowerInterval `json:"dataIntervals,omitempty"`
}

type ZoneSettingInterval struct {
	DataInterval
	Value *ZoneSetting `json:"value,omitempty"`
}

type ZoneSettingTimeSeries struct {
	TimeSeriesType *string               `json:"timeSeriesType,omitempty"`
	ValueType      *string               `json:"valueType,omitempty"`
	DataIntervals  []ZoneSettingInterval `json:"dataIntervals,omitempty"`
}

type TemperaturePoint struct {
	Timestamp *time.Time   `json:"timestamp,omitempty"`
	Value     *Temperature `json:"value,omitempty"`
}

type TemperatureTimeSeries struct {
	TimeSeriesType *string            `json:"timeSeriesType,omitempty"`
	ValueType      *string            `json:"valueType,omitempty"`
	Min            *Temperature       `json:"min,omitempty"`
	Max            *Temperature       `json:"max,omitempty"`
	DataPoints     []TemperaturePoint `json:"dataPoints,omitempty"`
}

// PercentagePoint carries a unit-interval fraction in Value
type PercentagePoint struct {
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Value     *float64   `json:"value,omitempty"`
}

type PercentageTimeSeries struct {
	TimeSeriesType *string           `json:"timeSeriesType,omitempty"`
	ValueType      *string           `json:"valueType,omitempty"`
	PercentageUnit *string           `json:"percentageUnit,omitempty"`
	Min            *float64          `json:"min,omitempty"`
	Max            *float64          `json:"max,omitempty"`
	DataPoints     []PercentagePoint `json:"dataPoints,omitempty"`
}

type WeatherCondition struct {
	State       *WeatherState `json:"state,omitempty"`
	Temperature *Temperature  `json:"temperature,omitempty"`
}

type WeatherConditionInterval struct {
	DataInterval
	Value *WeatherCondition `json:"value,omitempty"`
}

type WeatherConditionTimeSeries struct {
	TimeSeriesType *string                    `json:"timeSeriesType,omitempty"`
	ValueType      *string                    `json:"valueType,omitempty"`
	DataIntervals  []WeatherConditionInterval `json:"dataIntervals,omitempty"`
}

// WeatherSlotTimeSeries is keyed by "HH:MM"
type WeatherSlotTimeSeries struct {
	TimeSeriesType *string                     `json:"timeSeriesType,omitempty"`
	ValueType      *string                     `json:"valueType,omitempty"`
	Slots          map[string]WeatherCondition `json:"slots,omitempty"`
}

type DayReportMeasuredData struct {
	MeasuringDeviceConnected *BooleanTimeSeries     `json:"measuringDeviceConnected,omitempty"`
	InsideTemperature        *TemperatureTimeSeries `json:"insideTemperature,omitempty"`
	Humidity                 *PercentageTimeSeries  `json:"humidity,omitempty"`
}

type DayReportWeather struct {
	Condition *WeatherConditionTimeSeries `json:"condition,omitempty"`
	Sunny     *BooleanTimeSeries          `json:"sunny,omitempty"`
	Slots     *WeatherSlotTimeSeries      `json:"slots,omitempty"`
}

// DayReport bundles every signal series of one zone for one calendar day
type DayReport struct {
	ZoneType           *ZoneType              `json:"zoneType,omitempty"`
	Interval           *DataInterval          `json:"interval,omitempty"`
	HoursInDay         *int                   `json:"hoursInDay,omitempty"`
	MeasuredData       *DayReportMeasuredData `json:"measuredData,omitempty"`
	Stripes            json.RawMessage        `json:"stripes,omitempty"`
	Settings           *ZoneSettingTimeSeries `json:"settings,omitempty"`
	CallForHeat        *CallForHeatTimeSeries `json:"callForHeat,omitempty"`
	HotWaterProduction *BooleanTimeSeries     `json:"hotWaterProduction,omitempty"`
	ACActivity         *PowerTimeSeries       `json:"acActivity,omitempty"`
	Weather            *DayReportWeather      `json:"weather,omitempty"`
}

// Point-in-time resources

type HomeBase struct {
	ID   *int64  `json:"id,omitempty"`
	Name *string `json:"name,omitempty"`
}

type User struct {
	ID       *string    `json:"id,omitempty"`
	Name     *string    `json:"name,omitempty"`
	Email    *string    `json:"email,omitempty"`
	Username *string    `json:"username,omitempty"`
	Locale   *string    `json:"locale,omitempty"`
	Homes    []HomeBase `json:"homes,omitempty"`
}

type Zone struct {
	ID              *int64     `json:"id,omitempty"`
	Name            *string    `json:"name,omitempty"`
	Type            *ZoneType  `json:"type,omitempty"`
	DateCreated     *time.Time `json:"dateCreated,omitempty"`
	DeviceTypes     []string   `json:"deviceTypes,omitempty"`
	ReportAvailable *bool      `json:"reportAvailable,omitempty"`
}

type ZoneOpenWindow struct {
	DetectedTime           *time.Time `json:"detectedTime,omitempty"`
	DurationInSeconds      *int64     `json:"durationInSeconds,omitempty"`
	Expiry                 *time.Time `json:"expiry,omitempty"`
	RemainingTimeInSeconds *int64     `json:"remainingTimeInSeconds,omitempty"`
}

type ZoneStateLink struct {
	State *string `json:"state,omitempty"`
}

type ZoneState struct {
	TadoMode           *string             `json:"tadoMode,omitempty"`
	Setting            *ZoneSetting        `json:"setting,omitempty"`
	OverlayType        *string             `json:"overlayType,omitempty"`
	OpenWindow         *ZoneOpenWindow     `json:"openWindow,omitempty"`
	Link               *ZoneStateLink      `json:"link,omitempty"`
	ActivityDataPoints *ActivityDataPoints `json:"activityDataPoints,omitempty"`
	SensorDataPoints   *SensorDataPoints   `json:"sensorDataPoints,omitempty"`
}

type Weather struct {
	SolarIntensity     *PercentageDataPoint   `json:"solarIntensity,omitempty"`
	OutsideTemperature *TemperatureDataPoint  `json:"outsideTemperature,omitempty"`
	WeatherState       *WeatherStateDataPoint `json:"weatherState,omitempty"`
}

type DeviceConnectionState struct {
	Value     *bool      `json:"value,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type Device struct {
	DeviceType       *string                `json:"deviceType,omitempty"`
	SerialNo         *string                `json:"serialNo,omitempty"`
	ShortSerialNo    *string                `json:"shortSerialNo,omitempty"`
	CurrentFwVersion *string                `json:"currentFwVersion,omitempty"`
	ConnectionState  *DeviceConnectionState `json:"connectionState,omitempty"`
	BatteryState     *BatteryState          `json:"batteryState,omitempty"`
}
