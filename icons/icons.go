// Package icons maps provider condition codes to hosted icon images.
package icons

import "fmt"

// BaseURL is the OpenWeatherMap icon host.
const BaseURL = "https://openweathermap.org/img/wn/"

const (
	ScaleForecast = 2
	ScaleCurrent  = 4
)

// URL returns the icon image URL for a condition code at the given scale,
// e.g. "04d" at 2 -> https://openweathermap.org/img/wn/04d@2x.png.
func URL(code string, scale int) string {
	if code == "" {
		return ""
	}
	if scale <= 0 {
		scale = ScaleForecast
	}
	return fmt.Sprintf("%s%s@%dx.png", BaseURL, code, scale)
}
