package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func setupTestServer(handler http.HandlerFunc) (*httptest.Server, *SomaFM) {
	server := httptest.NewServer(handler)
	return server, newSomaFM(server.URL)
}

func TestSomaFMStations(t *testing.T) {
	channels := []somaChannel{
		{
			ID:          "dronezone",
			Title:       "Drone Zone",
			Description: "Atmospheric textures",
			Genre:       "ambient|space",
			Image:       "https://somafm.com/img/dronezone120.jpg",
			XLImage:     "https://somafm.com/img/dronezone-400.jpg",
			Listeners:   "500",
			Playlists: []somaPlaylist{
				{URL: "https://somafm.com/dronezone.pls", Format: "mp3", Quality: "high"},
			},
		},
		{
			ID:        "groovesalad",
			Title:     "Groove Salad",
			Genre:     "ambient|electronica",
			Listeners: "1000",
			Playlists: []somaPlaylist{
				{URL: "https://somafm.com/groovesalad130.pls", Format: "aac", Quality: "highest"},
				{URL: "https://somafm.com/groovesalad256.pls", Format: "mp3", Quality: "highest"},
			},
		},
		{
			ID:        "noplaylists",
			Title:     "Broken",
			Listeners: "9999",
		},
	}

	server, client := setupTestServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels.json" {
			t.Errorf("Expected path /channels.json, got %s", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"channels": channels})
	})
	defer server.Close()

	stations, err := client.Stations(context.Background())
	if err != nil {
		t.Fatalf("Stations() error = %v", err)
	}

	if len(stations) != 2 {
		t.Fatalf("Stations() returned %d stations, want 2 (invalid filtered)", len(stations))
	}

	gs := stations[0]
	if gs.ID != "groovesalad" {
		t.Errorf("stations[0].ID = %q, want groovesalad (most listeners first)", gs.ID)
	}
	if gs.StreamURL != "https://somafm.com/groovesalad256.pls" {
		t.Errorf("stations[0].StreamURL = %q, want the highest MP3 playlist", gs.StreamURL)
	}
	if !gs.UseStreamMetadata {
		t.Error("SomaFM stations should use stream metadata")
	}

	dz := stations[1]
	if dz.Name != "Drone Zone" || dz.Subtitle != "Atmospheric textures" {
		t.Errorf("stations[1] name/subtitle = %q/%q", dz.Name, dz.Subtitle)
	}
	if !dz.HasCategory("Space") || !dz.HasCategory("ambient") {
		t.Errorf("stations[1].Categories = %v, want ambient and space", dz.Categories)
	}
	if dz.ArtworkURL() != "https://somafm.com/img/dronezone-400.jpg" {
		t.Errorf("stations[1].ArtworkURL() = %q, want the XL image", dz.ArtworkURL())
	}
}

func TestSomaFMStationsErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"invalid json", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("not valid json"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, client := setupTestServer(tt.handler)
			defer server.Close()

			if _, err := client.Stations(context.Background()); err == nil {
				t.Error("Stations() should return an error")
			}
		})
	}
}

func TestBestPlaylistURL(t *testing.T) {
	tests := []struct {
		name      string
		playlists []somaPlaylist
		want      string
	}{
		{"empty", nil, ""},
		{"only aac", []somaPlaylist{{URL: "aac", Format: "aac"}}, "aac"},
		{"mp3 beats aac", []somaPlaylist{{URL: "aac", Format: "aac", Quality: "highest"}, {URL: "mp3", Format: "mp3", Quality: "low"}}, "mp3"},
		{"highest mp3 wins", []somaPlaylist{{URL: "low", Format: "mp3", Quality: "low"}, {URL: "hi", Format: "mp3", Quality: "highest"}}, "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := somaChannel{Playlists: tt.playlists}.bestPlaylistURL()
			if got != tt.want {
				t.Errorf("bestPlaylistURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
