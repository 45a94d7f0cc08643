package queryurl

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loginsight/internal/query"
)

// Golden URLs are the server contract. To regenerate after an intentional
// format change, run:
//
//	go test ./internal/queryurl -update
func TestCompile_Golden(t *testing.T) {
	allOperators := query.Constraints().
		Eq("num_field_1", "10").
		Ne("num_field_2", "20").
		Gt("num_field_3", "30").
		Ge("num_field_4", "40").
		Lt("num_field_5", "50").
		Le("num_field_6", "60").
		Contains("text_field_1", "value_1").
		NotContains("text_field_2", "value_2").
		Has("text_field_3", "value_3").
		NotHas("text_field_4", "value_4").
		MatchesRegex("text_field_5", "value_5").
		NotMatchesRegex("text_field_6", "value_6").
		Exists("field_exits").
		Build()

	testCases := []struct {
		name  string
		query query.Query
	}{
		{
			name: "event_basic",
			query: query.NewEventQuery().
				WithLimit(10).
				Where(query.Eq("field_1", "value1")).
				WithContentPackFields("test"),
		},
		{
			name: "event_default_params",
			query: query.NewEventQuery().
				WithLimit(100).
				Where(query.Constraints().Eq("vclap_caseid", "1423244").Gt("timestamp", "0").Build()...),
		},
		{
			name:  "event_all_operators",
			query: query.NewEventQuery().Where(allOperators...),
		},
		{
			name: "aggregate_max",
			query: query.NewAggregateQuery().
				Max("field_2").
				WithLimit(10).
				Where(query.Eq("field_1", "value1")).
				WithContentPackFields("test"),
		},
		{
			name:  "aggregate_count_with_defaults",
			query: query.NewAggregateQuery().Count().WithDefaults(),
		},
		{
			name: "aggregate_group_order",
			query: query.NewAggregateQuery().
				Max("field_2").
				GroupByFixedBinWidth("field_3", 100).
				OrderedBy(query.FuncMax, "field_2", query.Desc).
				OrderedBy(query.FuncMax, "", query.Asc).
				WithContentPackFields("test"),
		},
		{
			name: "aggregate_dynamic_bins",
			query: query.NewAggregateQuery().
				WithBinWidth(60000).
				GroupByDynamicBins("latency", 0, 10, 100.5, 1000),
		},
	}

	compiler := NewCompiler()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := compiler.Compile(tc.query)
			require.NoError(t, err)
			g.Assert(t, tc.name, []byte(u))
		})
	}
}
