package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"weather-insight/config"
	"weather-insight/datasource"
	"weather-insight/forecast"
	"weather-insight/models"
	"weather-insight/orchestrator"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}

	configFile := flag.String("config", "", "Path to configuration file")
	timeout := flag.Duration("timeout", 20*time.Second, "Lookup timeout")
	verbose := flag.Bool("v", false, "Log upstream errors")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <city>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	city := strings.Join(flag.Args(), " ")

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.OpenWeatherMap.APIKey == "" {
		fmt.Fprintln(os.Stderr, "No OpenWeatherMap API key provided (set OPENWEATHER_API_KEY)")
		os.Exit(1)
	}
	if strings.TrimSpace(city) == "" {
		city = cfg.Refresh.DefaultCity
	}

	level := slog.LevelError + 1
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	provider := datasource.NewOpenWeatherMapProvider(cfg.OpenWeatherMap.APIKey, datasource.WithBaseURL(cfg.OpenWeatherMap.BaseURL))
	controller := orchestrator.New(provider, provider, orchestrator.WithLogger(logger))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	snap, err := controller.Search(ctx, city)
	if errors.Is(err, orchestrator.ErrBlankQuery) {
		flag.Usage()
		os.Exit(2)
	}
	if err := render(os.Stdout, snap); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// render prints the snapshot and returns an error for failed cycles
func render(w io.Writer, snap models.Snapshot) error {
	if snap.State.Phase != models.PhaseSuccess || snap.Current == nil {
		return errors.New(snap.State.Reason)
	}
	cur := snap.Current

	fmt.Fprintf(w, "%s, %s\n", cur.LocationName, cur.CountryCode)
	fmt.Fprintf(w, "%d°C  %s\n\n", forecast.RoundTemp(cur.TemperatureC), cur.ConditionDescription)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Feels like\t%d°C\n", forecast.RoundTemp(cur.FeelsLikeC))
	fmt.Fprintf(tw, "High / Low\t%d°C / %d°C\n", forecast.RoundTemp(cur.TempMaxC), forecast.RoundTemp(cur.TempMinC))
	fmt.Fprintf(tw, "Humidity\t%.0f%%\n", cur.HumidityPct)
	fmt.Fprintf(tw, "Wind\t%.1f m/s\n", cur.WindSpeedMs)
	fmt.Fprintf(tw, "Pressure\t%.0f hPa\n", cur.PressureHPa)
	fmt.Fprintf(tw, "Visibility\t%.1f km\n", cur.VisibilityM/1000)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(snap.Forecast) == 0 {
		fmt.Fprintln(w, "\nNo forecast available.")
		return nil
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tDATE\tTEMP\tCONDITIONS")
	for _, day := range snap.Forecast {
		fmt.Fprintf(tw, "%s\t%s\t%d°C\t%s\n", day.DayLabel, day.Date, day.TemperatureC, day.ConditionDescription)
	}
	return tw.Flush()
}
