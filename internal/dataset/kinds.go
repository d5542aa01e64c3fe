package dataset

import (
	"strings"
	"time"
)

// Dataset kind names. Each kind owns its own master file.
const (
	KindWeather    = "weather"
	KindCollisions = "collisions"
)

// Coordinates locates a borough for the weather source.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Boroughs maps the five NYC boroughs to representative coordinates.
var Boroughs = map[string]Coordinates{
	"MANHATTAN":     {Lat: 40.7831, Lon: -73.9712},
	"BROOKLYN":      {Lat: 40.6782, Lon: -73.9442},
	"QUEENS":        {Lat: 40.7282, Lon: -73.7949},
	"BRONX":         {Lat: 40.8448, Lon: -73.8648},
	"STATEN ISLAND": {Lat: 40.5795, Lon: -74.1502},
}

// Weather condition codes.
const (
	ConditionClear   = "CLEAR"
	ConditionRain    = "RAIN"
	ConditionSnow    = "SNOW"
	ConditionFog     = "FOG"
	ConditionWind    = "WIND"
	ConditionUnknown = "UNKNOWN"
)

// WeatherSchema declares the canonical weather observation schema. Identity
// is borough plus observation timestamp.
func WeatherSchema() Schema {
	return Schema{
		Kind: KindWeather,
		Fields: []Field{
			{Name: "borough", Type: FieldString, Required: true},
			{Name: "observed_at", Type: FieldTime, Required: true},
			{Name: "temperature_c", Type: FieldFloat, Default: "0"},
			{Name: "precipitation_mm", Type: FieldFloat, Default: "0"},
			{Name: "wind_speed_kmh", Type: FieldFloat, Default: "0"},
			{Name: "condition", Type: FieldString, Default: ConditionUnknown},
			{Name: "severity", Type: FieldString, Default: "LIGHT"},
		},
		KeyFields: []string{"borough", "observed_at"},
		TimeField: "observed_at",
		Rename: map[string]string{
			"time":           "observed_at",
			"datetime":       "observed_at",
			"temperature_2m": "temperature_c",
			"precipitation":  "precipitation_mm",
			"wind_speed_10m": "wind_speed_kmh",
		},
		Derive: deriveWeather,
	}
}

func deriveWeather(raw RawRecord, fields map[string]string) {
	fields["borough"] = CleanBorough(fields["borough"])

	snow := rawFloat(raw, "snowfall", 0)
	rain := rawFloat(raw, "rain", 0) + rawFloat(raw, "showers", 0) + fieldFloat(fields, "precipitation_mm")
	visibility := rawFloat(raw, "visibility", 10000)
	wind := fieldFloat(fields, "wind_speed_kmh")

	fields["condition"] = categorizeWeather(snow, rain, visibility, wind)
	fields["severity"] = assessWeatherSeverity(snow, rain, visibility, wind)
}

func categorizeWeather(snow, rain, visibility, wind float64) string {
	switch {
	case snow > 0:
		return ConditionSnow
	case rain > 0:
		return ConditionRain
	case visibility < 5000:
		return ConditionFog
	case wind > 30:
		return ConditionWind
	}
	return ConditionClear
}

func assessWeatherSeverity(snow, rain, visibility, wind float64) string {
	switch {
	case snow > 5:
		return "HEAVY"
	case rain > 10:
		return "HEAVY"
	case rain > 5:
		return "MODERATE"
	case visibility < 1000:
		return "SEVERE"
	case visibility < 3000:
		return "MODERATE"
	case wind > 50:
		return "SEVERE"
	case wind > 30:
		return "MODERATE"
	}
	return "LIGHT"
}

// CollisionsSchema declares the canonical collision report schema. Identity
// is the source-assigned collision id.
func CollisionsSchema() Schema {
	return Schema{
		Kind: KindCollisions,
		Fields: []Field{
			{Name: "collision_id", Type: FieldString, Required: true},
			{Name: "crash_at", Type: FieldTime, Required: true},
			{Name: "borough", Type: FieldString, Default: "UNKNOWN"},
			{Name: "persons_injured", Type: FieldInt, Default: "0"},
			{Name: "persons_killed", Type: FieldInt, Default: "0"},
			{Name: "contributing_factor", Type: FieldString, Default: "unknown"},
			{Name: "vehicle_type", Type: FieldString, Default: "unknown"},
			{Name: "latitude", Type: FieldFloat, Default: "0"},
			{Name: "longitude", Type: FieldFloat, Default: "0"},
			{Name: "severity", Type: FieldString, Default: "NONE"},
		},
		KeyFields: []string{"collision_id"},
		TimeField: "crash_at",
		Rename: map[string]string{
			"crash_date":                    "crash_at",
			"number_of_persons_injured":     "persons_injured",
			"number_of_persons_killed":      "persons_killed",
			"contributing_factor_vehicle_1": "contributing_factor",
			"vehicle_type_code1":            "vehicle_type",
		},
		Derive: deriveCollision,
	}
}

func deriveCollision(raw RawRecord, fields map[string]string) {
	fields["crash_at"] = combineCrashTime(fields["crash_at"], raw)
	fields["borough"] = CleanBorough(fields["borough"])

	injured := fieldFloat(fields, "persons_injured")
	killed := fieldFloat(fields, "persons_killed")
	involved := injured + killed +
		rawFloat(raw, "number_of_pedestrians_injured", 0) +
		rawFloat(raw, "number_of_pedestrians_killed", 0) +
		rawFloat(raw, "number_of_cyclist_injured", 0) +
		rawFloat(raw, "number_of_cyclist_killed", 0) +
		rawFloat(raw, "number_of_motorist_injured", 0) +
		rawFloat(raw, "number_of_motorist_killed", 0)

	fields["severity"] = assessCollisionSeverity(injured, killed, involved)
}

func assessCollisionSeverity(injured, killed, involved float64) string {
	switch {
	case killed > 0:
		return "FATAL"
	case injured >= 3:
		return "SEVERE"
	case injured > 0:
		return "MODERATE"
	case involved > 0:
		return "MINOR"
	}
	return "NONE"
}

// combineCrashTime folds the source's separate crash_time column ("14:30",
// sometimes "9:05") into the canonical crash timestamp, which the source
// delivers with a midnight time component.
func combineCrashTime(crashAt string, raw RawRecord) string {
	v, ok := raw["crash_time"]
	if !ok {
		return crashAt
	}
	ts := strings.TrimSpace(stringify(v))
	if i := strings.Index(ts, ":"); i == 1 {
		ts = "0" + ts
	}
	clock, err := time.Parse("15:04", ts)
	if err != nil {
		return crashAt
	}
	base, err := time.Parse(time.RFC3339, crashAt)
	if err != nil {
		return crashAt
	}
	combined := time.Date(base.Year(), base.Month(), base.Day(),
		clock.Hour(), clock.Minute(), 0, 0, time.UTC)
	return combined.Format(time.RFC3339)
}

// CleanBorough normalizes a borough name to the canonical five-borough set;
// anything else maps to UNKNOWN.
func CleanBorough(name string) string {
	b := strings.ToUpper(strings.TrimSpace(name))
	if b == "STATEN IS" {
		b = "STATEN ISLAND"
	}
	if _, ok := Boroughs[b]; !ok {
		return "UNKNOWN"
	}
	return b
}

func rawFloat(raw RawRecord, name string, def float64) float64 {
	v, ok := raw[name]
	if !ok || v == nil {
		return def
	}
	f, err := toFloat(v)
	if err != nil {
		return def
	}
	return f
}

func fieldFloat(fields map[string]string, name string) float64 {
	f, err := toFloat(fields[name])
	if err != nil {
		return 0
	}
	return f
}
