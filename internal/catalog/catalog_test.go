package catalog

import (
	"errors"
	"testing"
	"time"
)

func alwaysExists(string) bool { return true }

func TestSelect_PicksClosestYear(t *testing.T) {
	selector := NewSelector(WithExistsFunc(alwaysExists))
	candidates := []DatasetRef{
		{Year: 1998, Path: "pop1998"},
		{Year: 2011, Path: "pop2011"},
		{Year: 2012, Path: "pop2012"},
		{Year: 2013, Path: "pop2013"},
	}

	cases := []struct {
		year int
		want string
	}{
		{2012, "pop2012"},
		{2010, "pop2011"},
		{1900, "pop1998"},
		{2030, "pop2013"},
	}
	for _, tc := range cases {
		got, err := selector.Select(candidates, tc.year)
		if err != nil {
			t.Fatalf("select %d: %v", tc.year, err)
		}
		if got != tc.want {
			t.Fatalf("select %d = %s, want %s", tc.year, got, tc.want)
		}
	}
}

func TestSelect_TieResolvesToEarliestListed(t *testing.T) {
	selector := NewSelector(WithExistsFunc(alwaysExists))
	candidates := []DatasetRef{
		{Year: 2011, Path: "pop2011"},
		{Year: 2013, Path: "pop2013"},
	}
	got, err := selector.Select(candidates, 2012)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got != "pop2011" {
		t.Fatalf("tie pick = %s, want pop2011", got)
	}
}

func TestSelect_MissingDataset(t *testing.T) {
	selector := NewSelector(WithExistsFunc(alwaysExists))
	if _, err := selector.Select(nil, 2012); !errors.Is(err, ErrMissingDataset) {
		t.Fatalf("empty candidates error = %v", err)
	}

	selector = NewSelector(WithExistsFunc(func(string) bool { return false }))
	_, err := selector.Select([]DatasetRef{{Year: 2012, Path: "pop2012"}}, 2012)
	if !errors.Is(err, ErrMissingDataset) {
		t.Fatalf("absent path error = %v", err)
	}
}

func TestVerify_FailsFastOnFirstMissingPath(t *testing.T) {
	present := map[string]bool{"pop2012": true, "country": true}
	selector := NewSelector(WithExistsFunc(func(path string) bool { return present[path] }))

	cat := Catalog{
		Population:  []DatasetRef{{Year: 2012, Path: "pop2012"}},
		CountryGrid: "country",
	}
	if err := selector.Verify(cat); err != nil {
		t.Fatalf("verify: %v", err)
	}

	cat.UrbanRural = "urban"
	if err := selector.Verify(cat); !errors.Is(err, ErrMissingDataset) {
		t.Fatalf("verify with missing urban grid = %v", err)
	}
}

func TestNearby_SortsByDeathsThenDistance(t *testing.T) {
	when := time.Date(1976, 5, 6, 20, 0, 0, 0, time.UTC)
	cat := NewHistoricalCatalog([]HistoricalRecord{
		{EventID: "far", Time: when, Lat: 30, Lon: 80, Magnitude: 7.6, ShakingDeaths: 5000},
		{EventID: "deadly", Time: when, Lat: 44.9, Lon: 11.9, Magnitude: 6.5, ShakingDeaths: 900},
		{EventID: "close", Time: when, Lat: 44.6, Lon: 11.6, Magnitude: 5.9, ShakingDeaths: 20},
		{EventID: "equal-deaths", Time: when, Lat: 46.5, Lon: 13.5, Magnitude: 6.0, ShakingDeaths: 20},
	})

	got := cat.Nearby(44.5, 11.5, 10)
	if len(got) != 3 {
		t.Fatalf("matches = %d, want 3 (far event excluded)", len(got))
	}
	if got[0].EventID != "deadly" {
		t.Fatalf("first = %s, want deadly", got[0].EventID)
	}
	if got[1].EventID != "close" || got[2].EventID != "equal-deaths" {
		t.Fatalf("tie order = %s, %s", got[1].EventID, got[2].EventID)
	}

	if limited := cat.Nearby(44.5, 11.5, 1); len(limited) != 1 {
		t.Fatalf("limit 1 returned %d", len(limited))
	}
}

func TestHaversine_KnownDistance(t *testing.T) {
	// Bologna to Florence is roughly 81 km.
	dist := Haversine(44.49, 11.34, 43.77, 11.25)
	if dist < 75 || dist > 90 {
		t.Fatalf("distance = %f km", dist)
	}
}
