package models

// GeocodeResult is a resolved address
type GeocodeResult struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Label     string  `json:"label"`
	QueryUsed string  `json:"queryUsed"`
	Source    string  `json:"source,omitempty"`
}

// GeocodeResponse is the body of GET /api/geocode
type GeocodeResponse struct {
	OK        bool    `json:"ok"`
	Lat       float64 `json:"lat,omitempty"`
	Lon       float64 `json:"lon,omitempty"`
	Label     string  `json:"label,omitempty"`
	QueryUsed string  `json:"queryUsed,omitempty"`
	Source    string  `json:"source,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// WeatherCurrent mirrors the Open-Meteo "current" block
type WeatherCurrent struct {
	Time             string  `json:"time"`
	Interval         int     `json:"interval"`
	Temperature2m    float64 `json:"temperature_2m"`
	WeatherCode      int     `json:"weather_code"`
	WindSpeed10m     float64 `json:"wind_speed_10m"`
	WindDirection10m float64 `json:"wind_direction_10m"`
	Precipitation    float64 `json:"precipitation"`
	Rain             float64 `json:"rain"`
	Snowfall         float64 `json:"snowfall"`
}

type WeatherHourly struct {
	Time          []string  `json:"time"`
	Precipitation []float64 `json:"precipitation"`
	Snowfall      []float64 `json:"snowfall"`
}

// WeatherData is the upstream forecast, passed through to the device
type WeatherData struct {
	Latitude     float64           `json:"latitude"`
	Longitude    float64           `json:"longitude"`
	Timezone     string            `json:"timezone"`
	CurrentUnits map[string]string `json:"current_units,omitempty"`
	Current      WeatherCurrent    `json:"current"`
	Hourly       WeatherHourly     `json:"hourly"`
}

// WeatherInsight is the operator-facing reading of the current conditions
type WeatherInsight struct {
	Label          string `json:"label"`
	LakeEffect     string `json:"lakeEffect"`
	LakeEffectNote string `json:"lakeEffectNote"`
}

// WeatherResponse is the body of GET /api/weather
type WeatherResponse struct {
	OK      bool            `json:"ok"`
	Data    *WeatherData    `json:"data,omitempty"`
	Insight *WeatherInsight `json:"insight,omitempty"`
	Error   string          `json:"error,omitempty"`
}
