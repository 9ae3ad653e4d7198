package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"weather-insight/icons"
	"weather-insight/models"
)

// DefaultOpenWeatherMapURL is the base of the 2.5 data API
const DefaultOpenWeatherMapURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherMapProvider implements both WeatherProvider and ForecastSource interfaces
type OpenWeatherMapProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option customizes an OpenWeatherMapProvider
type Option func(*OpenWeatherMapProvider)

// WithBaseURL points the provider at another API root (tests, proxies)
func WithBaseURL(baseURL string) Option {
	return func(p *OpenWeatherMapProvider) {
		if baseURL != "" {
			p.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(p *OpenWeatherMapProvider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// NewOpenWeatherMapProvider creates a new OpenWeatherMap provider
func NewOpenWeatherMapProvider(apiKey string, opts ...Option) *OpenWeatherMapProvider {
	p := &OpenWeatherMapProvider{
		apiKey:  apiKey,
		baseURL: DefaultOpenWeatherMapURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider name
func (p *OpenWeatherMapProvider) Name() string {
	return "OpenWeatherMap"
}

// currentResponse is the subset of /weather the service uses
type currentResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Pressure  float64 `json:"pressure"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Visibility float64 `json:"visibility"`
	Weather    []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
}

// forecastResponse is the subset of /forecast the service uses
type forecastResponse struct {
	List []struct {
		DtTxt string `json:"dt_txt"`
		Main  struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
	} `json:"list"`
}

// apiError is the body OpenWeatherMap sends with error statuses; cod is a number or a string
type apiError struct {
	Cod     any    `json:"cod"`
	Message string `json:"message"`
}

// GetWeather fetches current weather for a location
func (p *OpenWeatherMapProvider) GetWeather(ctx context.Context, location string) (models.CurrentConditions, error) {
	var response currentResponse
	if err := p.get(ctx, "weather", location, &response); err != nil {
		return models.CurrentConditions{}, err
	}

	// Extract weather description and icon if available
	code, description := "", ""
	if len(response.Weather) > 0 {
		code = response.Weather[0].Icon
		description = response.Weather[0].Description
	}

	return models.CurrentConditions{
		LocationName:         response.Name,
		CountryCode:          response.Sys.Country,
		TemperatureC:         response.Main.Temp,
		FeelsLikeC:           response.Main.FeelsLike,
		HumidityPct:          response.Main.Humidity,
		WindSpeedMs:          response.Wind.Speed,
		PressureHPa:          response.Main.Pressure,
		VisibilityM:          response.Visibility,
		ConditionCode:        code,
		ConditionDescription: description,
		TempMaxC:             response.Main.TempMax,
		TempMinC:             response.Main.TempMin,
		IconURL:              icons.URL(code, icons.ScaleCurrent),
		FetchedAt:            time.Now(),
	}, nil
}

// FetchForecast fetches the 5-day forecast, which OpenWeatherMap returns in 3-hour steps
func (p *OpenWeatherMapProvider) FetchForecast(ctx context.Context, location string) ([]models.ForecastSample, error) {
	var response forecastResponse
	if err := p.get(ctx, "forecast", location, &response); err != nil {
		return nil, err
	}

	samples := make([]models.ForecastSample, 0, len(response.List))
	for _, item := range response.List {
		code, description := "", ""
		if len(item.Weather) > 0 {
			code = item.Weather[0].Icon
			description = item.Weather[0].Description
		}
		samples = append(samples, models.ForecastSample{
			TimestampText:        item.DtTxt,
			TemperatureC:         item.Main.Temp,
			ConditionCode:        code,
			ConditionDescription: description,
		})
	}
	return samples, nil
}

// get performs a metric-units lookup of location against endpoint and decodes the body into out
func (p *OpenWeatherMapProvider) get(ctx context.Context, endpoint, location string, out any) error {
	params := url.Values{}
	params.Add("q", location)
	params.Add("appid", p.apiKey)
	params.Add("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Status: resp.StatusCode}
		var ae apiError
		if json.Unmarshal(body, &ae) == nil {
			se.Message = ae.Message
		}
		return se
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

var _ Provider = (*OpenWeatherMapProvider)(nil)
