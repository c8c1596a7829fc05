// Package model defines the Rick and Morty API payloads consumed by the client:
// characters, their location references, and the paginated list response.
package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Location is a name/URL reference to a location resource.
type Location struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Character is a single entry of the character list.
// Optional string fields are empty when the API omits them or sends null.
type Character struct {
	ID       int       `json:"id"`
	Name     string    `json:"name,omitempty"`
	Status   string    `json:"status,omitempty"`
	Species  string    `json:"species,omitempty"`
	Type     string    `json:"type,omitempty"`
	Gender   string    `json:"gender,omitempty"`
	Origin   *Location `json:"origin,omitempty"`
	Location *Location `json:"location,omitempty"`
	Image    string    `json:"image,omitempty"`
	Episode  []string  `json:"episode,omitempty"`
	URL      string    `json:"url,omitempty"`
	Created  string    `json:"created,omitempty"`
}

// Equal reports whether c and other are the same character.
// Characters are identified by ID; descriptive fields are not compared.
func (c Character) Equal(other Character) bool {
	return c.ID == other.ID
}

// CreatedAt parses the created timestamp (RFC 3339).
func (c Character) CreatedAt() (time.Time, error) {
	if c.Created == "" {
		return time.Time{}, fmt.Errorf("character %d: created timestamp missing", c.ID)
	}
	t, err := time.Parse(time.RFC3339, c.Created)
	if err != nil {
		return time.Time{}, fmt.Errorf("character %d: parse created: %w", c.ID, err)
	}
	return t, nil
}

// EpisodeLabels returns the display label of every episode the character
// appears in, in episode order. Episodes without a derivable label are skipped.
func (c Character) EpisodeLabels() []string {
	labels := make([]string, 0, len(c.Episode))
	for _, ep := range c.Episode {
		if label, ok := EpisodeLabel(ep); ok {
			labels = append(labels, label)
		}
	}
	return labels
}

// EpisodeLabel derives "Episode <n>" from an episode resource URL, where n is
// the last path segment. It returns false if the URL has no path segments.
//
// Example:
//
//	EpisodeLabel("https://rickandmortyapi.com/api/episode/28") // "Episode 28", true
func EpisodeLabel(episodeURL string) (string, bool) {
	u, err := url.Parse(episodeURL)
	if err != nil {
		return "", false
	}

	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return "", false
	}
	return "Episode " + segments[len(segments)-1], true
}
