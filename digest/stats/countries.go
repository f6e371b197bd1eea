// Package stats computes descriptive aggregates over already-fetched threads.
package stats

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/thread-digest/digest"
	"github.com/theimaginaryfoundation/thread-digest/digest/fileutils"
)

// FileName is the country report's file name inside the analysis data directory.
const FileName = "country_stats.json"

// UnknownCountry labels posts that carry no country.
const UnknownCountry = "Unknown"

type CountryCount struct {
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Posts int     `json:"posts"`
	Share float64 `json:"share"` // percent of all posts, two decimals
}

type CountryReport struct {
	ThreadCount int            `json:"threadCount"`
	TotalPosts  int            `json:"totalPosts"`
	Countries   []CountryCount `json:"countries"`
	GeneratedAt int64          `json:"generatedAt"` // epoch millis
}

// Countries counts posts per country across threads, sorted by post count descending then name.
// Posts are grouped by country code, falling back to the country name when the code is missing.
func Countries(threads []digest.Thread, now time.Time) CountryReport {
	report := CountryReport{
		ThreadCount: len(threads),
		Countries:   []CountryCount{},
		GeneratedAt: now.UnixMilli(),
	}

	byKey := map[string]*CountryCount{}
	for _, t := range threads {
		for _, p := range t.Posts {
			report.TotalPosts++
			code := strings.TrimSpace(p.Country)
			name := strings.TrimSpace(p.CountryName)
			key := strings.ToUpper(code)
			if key == "" {
				key = strings.ToLower(name)
			}
			c, ok := byKey[key]
			if !ok {
				c = &CountryCount{Code: code, Name: name}
				byKey[key] = c
			}
			if c.Name == "" {
				c.Name = name
			}
			c.Posts++
		}
	}

	for _, c := range byKey {
		switch {
		case c.Name == "" && c.Code == "":
			c.Name = UnknownCountry
		case c.Name == "":
			c.Name = c.Code
		}
		c.Share = math.Round(float64(c.Posts)*100/float64(report.TotalPosts)*100) / 100
		report.Countries = append(report.Countries, *c)
	}
	sort.Slice(report.Countries, func(i, j int) bool {
		a, b := report.Countries[i], report.Countries[j]
		if a.Posts != b.Posts {
			return a.Posts > b.Posts
		}
		return a.Name < b.Name
	})
	return report
}

// Write stores the report atomically as country_stats.json in dir and returns its path.
func Write(dir string, report CountryReport, pretty bool) (string, error) {
	path := filepath.Join(dir, FileName)
	if err := fileutils.WriteJSONFileAtomic(path, report, pretty); err != nil {
		return "", fmt.Errorf("write country stats: %w", err)
	}
	return path, nil
}
