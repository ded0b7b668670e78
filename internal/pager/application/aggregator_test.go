package application

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"quake-pager/internal/exposure"
	"quake-pager/internal/lossmodels"
	pager "quake-pager/internal/pager/domain"
	"quake-pager/internal/shaking"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

func testHeader() shaking.Header {
	return shaking.Header{
		EventID:    "us2024abcd",
		OriginTime: time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC),
		Lat:        38.3,
		Lon:        142.4,
		DepthKM:    24.0,
		Magnitude:  7.1,
		Location:   "off the east coast of Honshu, Japan",
	}
}

func testExposure() *exposure.Result {
	result := &exposure.Result{ByCountry: map[string][10]float64{}}
	result.Total[6] = 250000 // MMI 7
	result.Total[7] = 4200   // MMI 8
	result.Total[8] = 120    // MMI 9, below the reporting floor
	result.ByCountry["JPN"] = result.Total
	return result
}

func goodOutcomes() []lossmodels.Outcome {
	return []lossmodels.Outcome{
		{
			Kind: lossmodels.KindEmpiricalFatality,
			Estimate: &lossmodels.Estimate{
				Kind:      lossmodels.KindEmpiricalFatality,
				Units:     "fatalities",
				Expected:  320,
				Level:     pager.LevelOrange,
				ByCountry: map[string]float64{"JPN": 320},
			},
		},
		{
			Kind: lossmodels.KindEmpiricalEconomic,
			Estimate: &lossmodels.Estimate{
				Kind:      lossmodels.KindEmpiricalEconomic,
				Units:     "USD",
				Expected:  4.2e7,
				Level:     pager.LevelYellow,
				ByCountry: map[string]float64{"JPN": 4.2e7},
			},
		},
		{
			Kind: lossmodels.KindSemiEmpiricalFatality,
			Estimate: &lossmodels.Estimate{
				Kind:                     lossmodels.KindSemiEmpiricalFatality,
				Units:                    "fatalities",
				Expected:                 280,
				Level:                    pager.LevelOrange,
				ResidentialFatalities:    210,
				NonResidentialFatalities: 70,
			},
		},
	}
}

func TestAssemble_SummaryIsMaxOfHazards(t *testing.T) {
	agg := NewAggregator(WithClock(fakeClock{now: time.Date(2024, 4, 2, 9, 24, 0, 0, time.UTC)}))
	version, err := agg.Assemble(AssembleInput{
		EventCode: "us2024abcd",
		Header:    testHeader(),
		Exposure:  testExposure(),
		Outcomes:  goodOutcomes(),
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if version.SummaryLevel != pager.LevelOrange {
		t.Fatalf("summary = %s, want orange", version.SummaryLevel)
	}
	if version.FatalityLevel != pager.LevelOrange || version.EconomicLevel != pager.LevelYellow {
		t.Fatalf("hazard levels = %s/%s", version.FatalityLevel, version.EconomicLevel)
	}
	if version.Number != 0 {
		t.Fatalf("assembled version number = %d, want 0 before storage", version.Number)
	}
	if version.Elapsed != "1 hour, 24 minutes" {
		t.Fatalf("elapsed = %q", version.Elapsed)
	}
}

func TestAssemble_MaxIntensityHonorsPopulationFloor(t *testing.T) {
	agg := NewAggregator(WithClock(fakeClock{now: time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)}))
	version, err := agg.Assemble(AssembleInput{
		EventCode: "us2024abcd",
		Header:    testHeader(),
		Exposure:  testExposure(),
		Outcomes:  goodOutcomes(),
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	// MMI 9 holds only 120 people, below the floor; MMI 8 qualifies.
	if version.MaxIntensity != 8 {
		t.Fatalf("max intensity = %d, want 8", version.MaxIntensity)
	}
	if version.MaxIntensityPopulation != 4200 {
		t.Fatalf("max intensity population = %f", version.MaxIntensityPopulation)
	}
}

func TestAssemble_IsDeterministic(t *testing.T) {
	agg := NewAggregator()
	processTime := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)
	in := AssembleInput{
		EventCode:   "us2024abcd",
		Header:      testHeader(),
		Exposure:    testExposure(),
		Outcomes:    goodOutcomes(),
		ProcessTime: processTime,
	}
	first, err := agg.Assemble(in)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	second, err := agg.Assemble(in)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical inputs produced different documents")
	}
}

func TestAssemble_FailedModelDegradesGracefully(t *testing.T) {
	outcomes := goodOutcomes()
	outcomes[2] = lossmodels.Outcome{
		Kind: lossmodels.KindSemiEmpiricalFatality,
		Err:  lossmodels.ErrMissingUrbanRural,
	}
	agg := NewAggregator(WithClock(fakeClock{now: time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)}))
	version, err := agg.Assemble(AssembleInput{
		EventCode: "us2024abcd",
		Header:    testHeader(),
		Exposure:  testExposure(),
		Outcomes:  outcomes,
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if version.ModelResults.SemiEmpirical != nil {
		t.Fatal("failed model still produced a result block")
	}
	if version.Comments.Structure != "" {
		t.Fatalf("structure comment present for failed model: %q", version.Comments.Structure)
	}
	if version.Comments.Impact1 == "" {
		t.Fatal("surviving models should still produce impact comments")
	}
}

func TestAssemble_AllModelsFailed(t *testing.T) {
	agg := NewAggregator()
	_, err := agg.Assemble(AssembleInput{
		EventCode: "us2024abcd",
		Header:    testHeader(),
		Exposure:  testExposure(),
		Outcomes: []lossmodels.Outcome{
			{Kind: lossmodels.KindEmpiricalFatality, Err: errors.New("boom")},
			{Kind: lossmodels.KindEmpiricalEconomic, Err: errors.New("boom")},
		},
	})
	if !errors.Is(err, pager.ErrInsufficientResults) {
		t.Fatalf("error = %v, want ErrInsufficientResults", err)
	}
}

func TestAssemble_ImpactCommentOrdering(t *testing.T) {
	outcomes := goodOutcomes()
	agg := NewAggregator(WithClock(fakeClock{now: time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)}))
	version, err := agg.Assemble(AssembleInput{
		EventCode: "us2024abcd",
		Header:    testHeader(),
		Exposure:  testExposure(),
		Outcomes:  outcomes,
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if version.Comments.Impact1 != fatalityImpactComment(pager.LevelOrange) {
		t.Fatalf("impact1 = %q", version.Comments.Impact1)
	}
	if version.Comments.Impact2 != economicImpactComment(pager.LevelYellow) {
		t.Fatalf("impact2 = %q", version.Comments.Impact2)
	}

	// Equal levels leave the second slot empty.
	outcomes[1].Estimate.Level = pager.LevelOrange
	version, err = agg.Assemble(AssembleInput{
		EventCode: "us2024abcd",
		Header:    testHeader(),
		Exposure:  testExposure(),
		Outcomes:  outcomes,
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if version.Comments.Impact2 != "" {
		t.Fatalf("impact2 = %q, want empty for equal levels", version.Comments.Impact2)
	}
}

func TestAssemble_CountryTablesAreSorted(t *testing.T) {
	result := testExposure()
	result.ByCountry["CHN"] = [10]float64{0, 0, 0, 0, 0, 1000, 0, 0, 0, 0}
	result.ByCountry["AUS"] = [10]float64{0, 0, 0, 0, 0, 500, 0, 0, 0, 0}
	agg := NewAggregator(WithClock(fakeClock{now: time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)}))
	version, err := agg.Assemble(AssembleInput{
		EventCode: "us2024abcd",
		Header:    testHeader(),
		Exposure:  result,
		Outcomes:  goodOutcomes(),
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	var got []string
	for _, country := range version.PopulationExposure.Countries {
		got = append(got, country.CountryCode)
	}
	want := []string{"AUS", "CHN", "JPN"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("country order = %v, want %v", got, want)
	}
}
