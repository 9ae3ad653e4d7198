package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	baseURL := flag.String("addr", "http://localhost:8080", "Base URL of the weather-insight server")
	showHistory := flag.Bool("history", false, "Print the most recent query cycles afterwards")
	flag.Parse()

	city := strings.Join(flag.Args(), " ")
	client := &http.Client{Timeout: 30 * time.Second}

	fmt.Println("Weather API Client Example")
	fmt.Println("=========================")

	if city != "" {
		fmt.Printf("Searching for %s...\n", city)
		body, _ := json.Marshal(map[string]string{"query": city})
		resp, err := client.Post(*baseURL+"/api/search", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Error searching: %v\n", err)
			os.Exit(1)
		}
		printResponse(resp)
	} else {
		fmt.Println("Fetching the current lookup state...")
		resp, err := client.Get(*baseURL + "/api/weather")
		if err != nil {
			fmt.Printf("Error fetching weather: %v\n", err)
			os.Exit(1)
		}
		printResponse(resp)
	}

	if *showHistory {
		fmt.Println("\nRecent query cycles:")
		resp, err := client.Get(*baseURL + "/api/history?limit=5")
		if err != nil {
			fmt.Printf("Error fetching history: %v\n", err)
			os.Exit(1)
		}
		printResponse(resp)
	}
}

// printResponse pretty prints a JSON response body
func printResponse(resp *http.Response) {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		fmt.Println("(no content: blank query ignored)")
		return
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Error reading response: %v\n", err)
		os.Exit(1)
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		fmt.Printf("Status %d: %s\n", resp.StatusCode, raw)
		return
	}
	pretty, _ := json.MarshalIndent(data, "", "  ")
	fmt.Printf("Status %d:\n%s\n", resp.StatusCode, pretty)
}
