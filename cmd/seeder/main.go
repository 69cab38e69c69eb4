package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Config
const (
	API_URL = "http://localhost:8080/api/v1/ingest/batch"
)

// Player matches models.ExtractedPlayer (simplified).
type Player struct {
	Username     string `json:"username"`
	Eliminations int    `json:"eliminations"`
	Assists      int    `json:"assists"`
	Deaths       int    `json:"deaths"`
	Plants       int    `json:"plants"`
	Defuses      int    `json:"defuses"`
	Team         string `json:"team"`
}

// Batch matches models.ExtractionResult.
type Batch struct {
	SourceImageID string    `json:"source_image_id"`
	ExtractedAt   time.Time `json:"extracted_at"`
	MatchResult   string    `json:"match_result"`
	Players       []Player  `json:"players"`
}

func main() {
	// One scoreboard screenshot worth of players, both teams. The result is
	// from the capturer's perspective (the ATK side here).
	batch := Batch{
		SourceImageID: fmt.Sprintf("seed-img-%d", time.Now().Unix()),
		ExtractedAt:   time.Now().UTC(),
		MatchResult:   "VICTORY",
		Players: []Player{
			{Username: "TTV_HEARTMADDI", Eliminations: 15, Assists: 4, Deaths: 9, Plants: 2, Defuses: 0, Team: "ATK"},
			{Username: "[DVS]Raven", Eliminations: 11, Assists: 7, Deaths: 10, Plants: 1, Defuses: 0, Team: "ATK"},
			{Username: "shadow_fox", Eliminations: 8, Assists: 2, Deaths: 12, Plants: 0, Defuses: 1, Team: "DEF"},
			{Username: "yt.NightOwl", Eliminations: 13, Assists: 5, Deaths: 11, Plants: 0, Defuses: 2, Team: "DEF"},
		},
	}

	payload, err := json.Marshal([]Batch{batch})
	if err != nil {
		log.Fatalf("Failed to marshal JSON: %v", err)
	}

	req, err := http.NewRequest("POST", API_URL, bytes.NewBuffer(payload))
	if err != nil {
		log.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %s\n", resp.Status)
	fmt.Printf("Response: %s\n", string(body))

	if resp.StatusCode == 200 {
		fmt.Println("✅ Seed batch merged!")
	} else {
		fmt.Println("❌ Seed batch rejected!")
	}
}
