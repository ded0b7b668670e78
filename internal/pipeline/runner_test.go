package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	alertapp "quake-pager/internal/alerting/application"
	alerting "quake-pager/internal/alerting/domain"
	"quake-pager/internal/catalog"
	"quake-pager/internal/exposure"
	"quake-pager/internal/lossmodels"
	pagerapp "quake-pager/internal/pager/application"
	pager "quake-pager/internal/pager/domain"
	"quake-pager/internal/pager/infrastructure/memory"
	"quake-pager/internal/shaking"
)

var testOrigin = time.Date(2012, 5, 20, 2, 3, 0, 0, time.UTC)

type fakeLoader struct {
	shake  *shaking.ShakeGrid
	grids  map[string]*shaking.Grid
	loaded []string
}

func (l *fakeLoader) LoadShakeGrid(_ context.Context, path string) (*shaking.ShakeGrid, error) {
	l.loaded = append(l.loaded, path)
	if l.shake == nil {
		return nil, errors.New("no shake grid")
	}
	return l.shake, nil
}

func (l *fakeLoader) LoadGrid(_ context.Context, path string) (*shaking.Grid, error) {
	l.loaded = append(l.loaded, path)
	grid, ok := l.grids[path]
	if !ok {
		return nil, fmt.Errorf("unknown grid %s", path)
	}
	return grid, nil
}

func uniformGrid(value float64) *shaking.Grid {
	values := make([]float64, 4)
	for i := range values {
		values[i] = value
	}
	return &shaking.Grid{MinLon: 11.0, MinLat: 44.0, CellSize: 0.5, Cols: 2, Rows: 2, Values: values}
}

func testShakeGrid() *shaking.ShakeGrid {
	return &shaking.ShakeGrid{
		Header: shaking.Header{
			EventID:    "us2012ghij",
			OriginTime: testOrigin,
			Lat:        44.5,
			Lon:        11.5,
			DepthKM:    9.6,
			Magnitude:  7.0,
			Location:   "northern Italy",
		},
		MMI: uniformGrid(7.0),
	}
}

// buildRunner wires a pipeline whose rates put 4000 people at MMI 7 and yield
// 200 expected deaths (orange) and 20 million dollars (yellow).
func buildRunner(t *testing.T, store *memory.Store, loader *fakeLoader) *Runner {
	t.Helper()

	fatalityRates := lossmodels.RateTable{Default: [10]float64{0, 0, 0, 0, 0, 0, 0.05, 0.1, 0.2, 0.3}}
	economicRatios := lossmodels.RateTable{Default: [10]float64{0, 0, 0, 0, 0, 0, 0.5, 0.6, 0.7, 0.8}}

	fatalityModel, err := lossmodels.NewEmpiricalFatalityModel(fatalityRates, 2.5)
	if err != nil {
		t.Fatalf("fatality model: %v", err)
	}
	economicModel, err := lossmodels.NewEmpiricalEconomicModel(economicRatios, 2.0)
	if err != nil {
		t.Fatalf("economic model: %v", err)
	}
	semiModel, err := lossmodels.NewSemiEmpiricalModel(lossmodels.SemiEmpiricalParams{
		UrbanRates:       [10]float64{0, 0, 0, 0, 0, 0, 0.04, 0.08, 0.16, 0.24},
		RuralRates:       [10]float64{0, 0, 0, 0, 0, 0, 0.02, 0.04, 0.08, 0.12},
		ResidentialShare: 0.7,
		G:                2.5,
	})
	if err != nil {
		t.Fatalf("semi-empirical model: %v", err)
	}
	models, err := lossmodels.NewRunner(fatalityModel, economicModel, semiModel)
	if err != nil {
		t.Fatalf("model runner: %v", err)
	}

	publisher, err := pagerapp.NewPublishService(store, nil, nil, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("publish service: %v", err)
	}

	cat := catalog.Catalog{
		Population: []catalog.DatasetRef{
			{Year: 1998, Path: "pop1998"},
			{Year: 2011, Path: "pop2011"},
			{Year: 2012, Path: "pop2012"},
			{Year: 2013, Path: "pop2013"},
		},
		CountryGrid: "country",
	}
	selector := catalog.NewSelector(catalog.WithExistsFunc(func(string) bool { return true }))
	engine := exposure.NewEngine(exposure.WithCountryNames(map[int]string{380: "ITA"}))
	aggregator := pagerapp.NewAggregator()

	runner, err := NewRunner(cat, selector, loader, engine, models, aggregator, publisher,
		log.New(io.Discard, "", 0),
		WithEconomicWeights(map[string]float64{"ITA": 10000}, 1000),
	)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner
}

func newLoader() *fakeLoader {
	return &fakeLoader{
		shake: testShakeGrid(),
		grids: map[string]*shaking.Grid{
			"pop2012": uniformGrid(1000),
			"country": uniformGrid(380),
		},
	}
}

func TestProcessEvent_EndToEnd(t *testing.T) {
	store := memory.NewStore()
	loader := newLoader()
	runner := buildRunner(t, store, loader)

	version, err := runner.ProcessEvent(context.Background(), Request{ShakeGridPath: "shake.xml"})
	if err != nil {
		t.Fatalf("process event: %v", err)
	}

	// 2012 is an exact catalog year; the selector must not reach for 2011 or 2013.
	for _, path := range loader.loaded {
		if path == "pop2011" || path == "pop2013" || path == "pop1998" {
			t.Fatalf("wrong population grid loaded: %s", path)
		}
	}

	if version.EventCode != "us2012ghij" {
		t.Fatalf("event code = %q", version.EventCode)
	}
	if version.Number != 1 {
		t.Fatalf("version number = %d, want 1", version.Number)
	}
	if version.FatalityLevel != pager.LevelOrange {
		t.Fatalf("fatality level = %s, want orange", version.FatalityLevel)
	}
	if version.EconomicLevel != pager.LevelYellow {
		t.Fatalf("economic level = %s, want yellow", version.EconomicLevel)
	}
	if version.SummaryLevel != pager.LevelOrange {
		t.Fatalf("summary level = %s, want orange", version.SummaryLevel)
	}
	if version.MaxIntensity != 7 {
		t.Fatalf("max intensity = %d, want 7", version.MaxIntensity)
	}
	if version.PopulationExposure.Total[6] != 4000 {
		t.Fatalf("exposure at MMI 7 = %f, want 4000", version.PopulationExposure.Total[6])
	}

	// No urban/rural grid was configured, so the semi-empirical model failed
	// in isolation and its block is absent.
	if version.ModelResults.SemiEmpirical != nil {
		t.Fatal("semi-empirical result present without an urban/rural grid")
	}
	if version.ModelResults.EmpiricalFatality == nil || version.ModelResults.EmpiricalEconomic == nil {
		t.Fatal("empirical results missing")
	}
}

func TestProcessEvent_FirstVersionNotifiesThenStaleSkips(t *testing.T) {
	store := memory.NewStore()
	loader := newLoader()
	runner := buildRunner(t, store, loader)
	ctx := context.Background()

	first, err := runner.ProcessEvent(ctx, Request{ShakeGridPath: "shake.xml"})
	if err != nil {
		t.Fatalf("process event: %v", err)
	}

	engine, err := alertapp.NewEngine(24*time.Hour, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	subscribers := []alerting.Subscriber{{
		ID:       "duty",
		Address:  "duty@example.org",
		Format:   alerting.FormatLong,
		RuleText: "level >= yellow",
		Rule:     alerting.MustParseRule("level >= yellow"),
	}}

	outcome := engine.Decide(first, nil, subscribers, testOrigin.Add(time.Hour))
	if outcome.Status != alertapp.StatusEvaluated {
		t.Fatalf("first round status = %q", outcome.Status)
	}
	if len(outcome.Decisions) != 1 || !outcome.Decisions[0].Notify {
		t.Fatalf("first version above threshold should notify, got %+v", outcome.Decisions)
	}

	second, err := runner.ProcessEvent(ctx, Request{ShakeGridPath: "shake.xml"})
	if err != nil {
		t.Fatalf("process second version: %v", err)
	}
	if second.Number != 2 {
		t.Fatalf("second version number = %d", second.Number)
	}

	late := engine.Decide(second, first, subscribers, testOrigin.Add(30*time.Hour))
	if late.Status != alertapp.StatusStaleSkipped {
		t.Fatalf("late round status = %q, want stale_skipped", late.Status)
	}
	if len(late.Decisions) != 0 {
		t.Fatalf("late round decisions = %d, want 0", len(late.Decisions))
	}
}

func TestProcessEvent_MissingShakeGridIsBadInput(t *testing.T) {
	store := memory.NewStore()
	loader := &fakeLoader{grids: map[string]*shaking.Grid{}}
	runner := buildRunner(t, store, loader)

	_, err := runner.ProcessEvent(context.Background(), Request{ShakeGridPath: "shake.xml"})
	if !errors.Is(err, ErrBadInput) {
		t.Fatalf("error = %v, want ErrBadInput", err)
	}
}

func TestProcessEvent_MissingPopulationDataset(t *testing.T) {
	store := memory.NewStore()
	loader := newLoader()
	loader.shake.Header.OriginTime = time.Date(2012, 5, 20, 2, 3, 0, 0, time.UTC)

	fatalityModel, _ := lossmodels.NewEmpiricalFatalityModel(lossmodels.RateTable{}, 2.5)
	models, err := lossmodels.NewRunner(fatalityModel)
	if err != nil {
		t.Fatalf("model runner: %v", err)
	}
	publisher, err := pagerapp.NewPublishService(store, nil, nil, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("publish service: %v", err)
	}
	selector := catalog.NewSelector(catalog.WithExistsFunc(func(string) bool { return false }))
	runner, err := NewRunner(
		catalog.Catalog{Population: []catalog.DatasetRef{{Year: 2012, Path: "pop2012"}}, CountryGrid: "country"},
		selector, loader, exposure.NewEngine(), models, pagerapp.NewAggregator(), publisher,
		log.New(io.Discard, "", 0),
	)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	_, err = runner.ProcessEvent(context.Background(), Request{ShakeGridPath: "shake.xml"})
	if !errors.Is(err, catalog.ErrMissingDataset) {
		t.Fatalf("error = %v, want ErrMissingDataset", err)
	}
}
