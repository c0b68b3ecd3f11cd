package metadata

import (
	"strings"
	"testing"
)

func TestParseSeparatorSplitting(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantOK     bool
		wantArtist string
		wantTitle  string
	}{
		{"artist and title", "Daft Punk - One More Time", true, "Daft Punk", "One More Time"},
		{"title only", "JustATitleNoDash", true, "", "JustATitleNoDash"},
		{"too short", "Hi", false, "", ""},
		{"exactly three chars", "Abc", false, "", ""},
		{"four chars", "Abcd", true, "", "Abcd"},
		{"surrounding whitespace", "   Moby  -  Porcelain   ", true, "Moby", "Porcelain"},
		{"junk after separator glyph", "Air - La Femme d'Argent | www.example.fm", true, "Air", "La Femme d'Argent"},
		{"only junk", "| advert", false, "", ""},
		{"more than two parts keeps second as title", "A - B - C", true, "A", "B"},
		{"empty artist", " - Title", true, "", "- Title"},
		{"sentinel title part", "Artist - unknown", false, "", ""},
		{"sentinel artist part", "NULL - Song", false, "", ""},
		{"hyphen without spaces", "Jay-Z", true, "", "Jay-Z"},
		{"multibyte short", "日本語", false, "", ""},
		{"multibyte long", "日本語の歌", true, "", "日本語の歌"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track, ok := Parse(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v (track %+v)", tt.raw, ok, tt.wantOK, track)
			}
			if !ok {
				return
			}
			if track.Artist != tt.wantArtist {
				t.Errorf("Parse(%q) artist = %q, want %q", tt.raw, track.Artist, tt.wantArtist)
			}
			if track.Title != tt.wantTitle {
				t.Errorf("Parse(%q) title = %q, want %q", tt.raw, track.Title, tt.wantTitle)
			}
			if track.ID == "" {
				t.Errorf("Parse(%q) returned a track without identity", tt.raw)
			}
		})
	}
}

func TestParseEmptyArtistRejected(t *testing.T) {
	// " - Title" is cleaned to "- Title", which has no " - " separator left.
	// A separator with nothing before it after cleaning must not produce an artist.
	if track, ok := Parse("x - "); ok {
		t.Errorf("Parse(%q) = %+v, want rejection", "x - ", track)
	}
}

func TestParseSentinelRejection(t *testing.T) {
	inputs := []string{"true", "false", "null", "unknown", "n/a", "-", ""}

	for _, in := range inputs {
		variants := []string{in, strings.ToUpper(in), "  " + in + "  ", capitalize(in)}
		for _, v := range variants {
			if track, ok := Parse(v); ok {
				t.Errorf("Parse(%q) = %+v, want no update", v, track)
			}
		}
	}
}

func TestParseDigitRunStripping(t *testing.T) {
	tests := []struct {
		raw        string
		wantArtist string
		wantTitle  string
	}{
		{"Artist - Song 123456 Remix", "Artist", "Song Remix"},
		{"Artist - Song 1234567890", "Artist", "Song"},
		{"Artist - Song 12345 Remix", "Artist", "Song 12345 Remix"},
		{"987654 Artist - Song", "Artist", "Song"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			track, ok := Parse(tt.raw)
			if !ok {
				t.Fatalf("Parse(%q) rejected", tt.raw)
			}
			if track.Artist != tt.wantArtist || track.Title != tt.wantTitle {
				t.Errorf("Parse(%q) = (%q, %q), want (%q, %q)",
					tt.raw, track.Artist, track.Title, tt.wantArtist, tt.wantTitle)
			}
		})
	}
}

func TestParseIdempotent(t *testing.T) {
	inputs := []string{
		"Daft Punk - One More Time",
		"  Boards of Canada  -  Roygbiv | ad ",
		"Artist - Song 123456 Remix",
		"JustATitleNoDash",
		"A - B - C",
		"Some\t\tTitle\nWith   Spaces",
		"Hi",
		"null",
		"Title 0000000 | junk | more",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			cleaned := Clean(in)
			if again := Clean(cleaned); again != cleaned {
				t.Errorf("Clean not idempotent: %q -> %q -> %q", in, cleaned, again)
			}

			first, ok1 := Parse(in)
			second, ok2 := Parse(cleaned)
			if ok1 != ok2 {
				t.Fatalf("Parse(%q) ok=%v but Parse(Clean) ok=%v", in, ok1, ok2)
			}
			if ok1 && !first.SameContent(second) {
				t.Errorf("Parse(%q) = %+v, Parse(Clean) = %+v", in, first, second)
			}

			if ok1 {
				third, ok3 := Parse(first.String())
				if !ok3 || !third.SameContent(first) {
					t.Errorf("re-parsing %q gave %+v (ok=%v), want %+v", first.String(), third, ok3, first)
				}
			}
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"  hello  ", "hello"},
		{"a   b\t c", "a b c"},
		{"title | junk", "title"},
		{"title 1234567 x", "title x"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Clean(tt.raw); got != tt.expected {
			t.Errorf("Clean(%q) = %q, want %q", tt.raw, got, tt.expected)
		}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
