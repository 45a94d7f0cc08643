package queryurl

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/roach88/loginsight/internal/query"
)

func TestExpression_Exists(t *testing.T) {
	expr, err := NewCompiler().Expression(query.Exists("field_x"))
	require.NoError(t, err)
	assert.Equal(t, "field_x/EXISTS", expr)
}

func TestExpression_EncodesValues(t *testing.T) {
	testCases := []struct {
		name       string
		constraint query.Constraint
		want       string
	}{
		{"numeric", query.Gt("timestamp", "0"), "timestamp/GT+0"},
		{"space", query.Contains("text", "disk full"), "text/CONTAINS+disk+full"},
		{"reserved", query.Contains("text", "error: a/b?c&d"), "text/CONTAINS+error%3A+a%2Fb%3Fc%26d"},
		{"regex", query.MatchesRegex("text", "^a.*b$"), "text/MATCHES_REGEX+%5Ea.*b%24"},
		{"negated regex", query.NotMatchesRegex("text", ".*error.*"), "text/NOT_MATCHES_REGEX+.*error.*"},
		{"tilde", query.Eq("path", "a~b"), "path/EQ+a%7Eb"},
		{"percent before 2A", query.Eq("raw", "%2A*"), "raw/EQ+%252A*"},
		{"unreserved", query.Eq("id", "Az09-_.*"), "id/EQ+Az09-_.*"},
		{"numeric operator same escaping", query.Eq("ratio", "1/2"), "ratio/EQ+1%2F2"},
		{"utf8", query.Eq("city", "café"), "city/EQ+caf%C3%A9"},
		{"empty value", query.Eq("tag", ""), "tag/EQ+"},
	}

	compiler := NewCompiler()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			expr, err := compiler.Expression(tc.constraint)
			require.NoError(t, err)
			assert.Equal(t, tc.want, expr)
		})
	}
}

func TestExpression_RejectsZeroConstraint(t *testing.T) {
	expr, err := NewCompiler().Expression(query.Constraint{})
	require.Error(t, err)
	assert.Empty(t, expr)
	assert.True(t, query.IsInvalidConstraint(err))

	_, err = NewCompiler().PathSegment([]query.Constraint{query.Exists("a"), {}})
	assert.True(t, query.IsInvalidConstraint(err))
}

func TestExpression_InvalidUTF8(t *testing.T) {
	_, err := NewCompiler().Expression(query.Eq("field", "bad\xffbyte"))
	require.Error(t, err)

	assert.True(t, IsEncodingError(err))
	assert.ErrorIs(t, err, encoding.ErrInvalidUTF8)

	var ee *EncodingError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "field/EQ bad\xffbyte", ee.Constraint)
}

func TestExpression_Charset(t *testing.T) {
	latin1 := NewCompiler(WithCharset(charmap.ISO8859_1))

	expr, err := latin1.Expression(query.Eq("city", "café"))
	require.NoError(t, err)
	assert.Equal(t, "city/EQ+caf%E9", expr)

	_, err = latin1.Expression(query.Eq("city", "東京"))
	require.Error(t, err)
	assert.True(t, IsEncodingError(err))
}

func TestPathSegment(t *testing.T) {
	compiler := NewCompiler()

	t.Run("empty", func(t *testing.T) {
		path, err := compiler.PathSegment(nil)
		require.NoError(t, err)
		assert.Empty(t, path)
	})

	t.Run("single", func(t *testing.T) {
		path, err := compiler.PathSegment(query.Constraints().Eq("field_1", "value_1").Build())
		require.NoError(t, err)
		assert.Equal(t, "field_1/EQ+value_1", path)
	})

	t.Run("duplicates kept in order", func(t *testing.T) {
		cs := query.Constraints().
			Gt("timestamp", "10").
			Eq("host", "a").
			Gt("timestamp", "10").
			Build()
		path, err := compiler.PathSegment(cs)
		require.NoError(t, err)
		assert.Equal(t, "timestamp/GT+10/host/EQ+a/timestamp/GT+10", path)
	})

	t.Run("order preserved", func(t *testing.T) {
		var cs []query.Constraint
		var want []string
		for i := 0; i < 20; i++ {
			cs = append(cs, query.Eq(fmt.Sprintf("f%d", i), fmt.Sprintf("v%d", i)))
			want = append(want, fmt.Sprintf("f%d/EQ+v%d", i, i))
		}
		path, err := compiler.PathSegment(cs)
		require.NoError(t, err)
		assert.Equal(t, strings.Join(want, "/"), path)
	})

	t.Run("error names constraint", func(t *testing.T) {
		cs := []query.Constraint{query.Eq("ok", "fine"), query.Eq("broken", "\xfe")}
		_, err := compiler.PathSegment(cs)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken/EQ")
	})
}

func TestCompile_EventQuery(t *testing.T) {
	compiler := NewCompiler()

	testCases := []struct {
		name  string
		query query.EventQuery
		want  string
	}{
		{
			name:  "no constraints no params",
			query: query.NewEventQuery(),
			want:  "/api/v1/events/",
		},
		{
			name:  "limit only",
			query: query.NewEventQuery().WithLimit(10),
			want:  "/api/v1/events/?limit=10",
		},
		{
			name:  "timeout only",
			query: query.NewEventQuery().WithTimeout(5000),
			want:  "/api/v1/events/?timeout=5000",
		},
		{
			name: "with defaults",
			query: query.NewEventQuery().
				WithLimit(10).
				WithDefaults().
				Where(query.Eq("field_1", "value1")).
				WithContentPackFields("test"),
			want: "/api/v1/events/field_1/EQ+value1?limit=10&timeout=30000&content-pack-fields=test",
		},
		{
			name:  "content pack fields in order",
			query: query.NewEventQuery().WithContentPackFields("c", "a").WithContentPackFields("b"),
			want:  "/api/v1/events/?content-pack-fields=c&content-pack-fields=a&content-pack-fields=b",
		},
		{
			name:  "content pack fields verbatim",
			query: query.NewEventQuery().WithContentPackFields("com.vmware.vsphere:vmw_esxi_vm"),
			want:  "/api/v1/events/?content-pack-fields=com.vmware.vsphere:vmw_esxi_vm",
		},
		{
			name:  "constraints without params",
			query: query.NewEventQuery().Where(query.Exists("field_x")),
			want:  "/api/v1/events/field_x/EXISTS",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := compiler.Compile(tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.want, u)
		})
	}
}

func TestCompile_AggregateQuery(t *testing.T) {
	compiler := NewCompiler()

	testCases := []struct {
		name  string
		query query.AggregateQuery
		want  string
	}{
		{
			name:  "all defaults",
			query: query.NewAggregateQuery(),
			want:  "/api/v1/aggregated-events/",
		},
		{
			name: "limit constraint content pack",
			query: query.NewAggregateQuery().
				WithLimit(10).
				Where(query.Eq("field_1", "value1")).
				WithContentPackFields("test"),
			want: "/api/v1/aggregated-events/field_1/EQ+value1?limit=10&content-pack-fields=test",
		},
		{
			name:  "sample renders without field",
			query: query.NewAggregateQuery().Sample(),
			want:  "/api/v1/aggregated-events/?aggregation-function=SAMPLE",
		},
		{
			name:  "count after max drops field",
			query: query.NewAggregateQuery().Max("latency").Count().WithDefaults(),
			want:  "/api/v1/aggregated-events/?limit=100&timeout=30000&bin-width=5000&aggregation-function=COUNT",
		},
		{
			name:  "ucount",
			query: query.NewAggregateQuery().UCount("hostname"),
			want:  "/api/v1/aggregated-events/?aggregation-function=UCOUNT&aggregation-field=hostname",
		},
		{
			name:  "bin width only",
			query: query.NewAggregateQuery().WithBinWidth(1000),
			want:  "/api/v1/aggregated-events/?bin-width=1000",
		},
		{
			name: "order by optional parts",
			query: query.NewAggregateQuery().
				OrderedBy(query.FuncNone, "", "").
				OrderedBy(query.FuncCount, "", query.Desc).
				OrderedBy(query.FuncSum, "bytes", ""),
			want: "/api/v1/aggregated-events/?order-by-function=NONE&order-by-function=COUNT&order-by-direction=DESC&order-by-function=SUM&order-by-field=bytes",
		},
		{
			name: "group by mixed in order",
			query: query.NewAggregateQuery().
				GroupByDynamicBins("size", 1, 2, 3).
				GroupByFixedBinWidth("latency", 50),
			want: "/api/v1/aggregated-events/?group-by-field=size&bins=1,2,3&group-by-field=latency&bin-width=50",
		},
		{
			name: "group by pointer variants",
			query: query.AggregateQuery{
				Params:      query.DefaultParams(),
				Aggregation: query.DefaultAggregation(),
				GroupBy: []query.GroupBy{
					&query.FixedBinWidth{Field: "a", Width: 1},
					&query.DynamicBins{Field: "b", Bins: []float64{0.25}},
				},
			},
			want: "/api/v1/aggregated-events/?group-by-field=a&bin-width=1&group-by-field=b&bins=0.25",
		},
		{
			name: "full section order",
			query: query.NewAggregateQuery().
				WithLimit(5).
				WithTimeout(1000).
				WithBinWidth(60000).
				Avg("latency").
				Where(query.Eq("app", "web")).
				OrderedBy(query.FuncAvg, "latency", query.Desc).
				WithContentPackFields("cp").
				GroupByFixedBinWidth("host", 1),
			want: "/api/v1/aggregated-events/app/EQ+web?limit=5&timeout=1000&bin-width=60000" +
				"&aggregation-function=AVG&aggregation-field=latency" +
				"&order-by-function=AVG&order-by-field=latency&order-by-direction=DESC" +
				"&content-pack-fields=cp" +
				"&group-by-field=host&bin-width=1",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := compiler.Compile(tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.want, u)
		})
	}
}

func TestCompile_Pointers(t *testing.T) {
	compiler := NewCompiler()

	eq := query.NewEventQuery().WithLimit(10)
	u, err := compiler.Compile(&eq)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/events/?limit=10", u)

	aq := query.NewAggregateQuery().Max("x")
	u, err = compiler.Compile(&aq)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/aggregated-events/?aggregation-function=MAX&aggregation-field=x", u)
}

func TestCompile_DefaultSuppression(t *testing.T) {
	compiler := NewCompiler()

	u, err := compiler.Compile(query.NewAggregateQuery())
	require.NoError(t, err)
	for _, key := range []string{"limit=", "timeout=", "bin-width=", "aggregation-function="} {
		assert.NotContains(t, u, key)
	}

	u, err = compiler.Compile(query.NewAggregateQuery().WithDefaults())
	require.NoError(t, err)
	for _, pair := range []string{"limit=100", "timeout=30000", "bin-width=5000", "aggregation-function=COUNT"} {
		assert.Contains(t, u, pair)
	}
}

func TestCompile_Errors(t *testing.T) {
	compiler := NewCompiler()

	t.Run("function without field", func(t *testing.T) {
		q := query.NewAggregateQuery()
		q.Aggregation.Function = query.FuncMax
		_, err := compiler.Compile(q)
		require.Error(t, err)
		assert.True(t, query.IsInvalidAggregation(err))
	})

	t.Run("count with stale field", func(t *testing.T) {
		q := query.NewAggregateQuery()
		q.Aggregation.Field = "stale"
		_, err := compiler.Compile(q.WithDefaults())
		require.Error(t, err)
		assert.True(t, query.IsInvalidAggregation(err))
	})

	t.Run("zero constraint", func(t *testing.T) {
		q := query.NewEventQuery()
		q.Constraints = []query.Constraint{{}}
		_, err := compiler.Compile(q)
		require.Error(t, err)
		assert.True(t, query.IsInvalidConstraint(err))
	})

	t.Run("encoding failure", func(t *testing.T) {
		_, err := compiler.Compile(query.NewEventQuery().Where(query.Eq("f", "\xc3\x28")))
		require.Error(t, err)
		assert.True(t, IsEncodingError(err))
	})

	t.Run("nil query", func(t *testing.T) {
		_, err := compiler.Compile(nil)
		require.Error(t, err)
	})

	t.Run("nil group-by", func(t *testing.T) {
		q := query.NewAggregateQuery()
		q.GroupBy = []query.GroupBy{(*query.FixedBinWidth)(nil), (*query.DynamicBins)(nil)}
		u, err := compiler.Compile(q)
		require.Error(t, err)
		assert.Empty(t, u)
		assert.Contains(t, err.Error(), "nil group-by")
	})

	t.Run("empty bins", func(t *testing.T) {
		_, err := compiler.Compile(query.NewAggregateQuery().GroupByDynamicBins("size"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bins are empty")
	})

	t.Run("non-finite bins", func(t *testing.T) {
		_, err := compiler.Compile(query.NewAggregateQuery().GroupByDynamicBins("size", 1, math.NaN(), math.Inf(1)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NaN is not finite")
		assert.Contains(t, err.Error(), "+Inf is not finite")
	})
}

func TestCompile_Idempotent(t *testing.T) {
	compiler := NewCompiler()
	q := query.NewAggregateQuery().
		Max("field_2").
		Where(query.Contains("message", "disk full")).
		GroupByFixedBinWidth("field_3", 100).
		OrderedBy(query.FuncMax, "field_2", query.Desc)

	first, err := compiler.Compile(q)
	require.NoError(t, err)
	second, err := compiler.Compile(q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompile_Concurrent(t *testing.T) {
	compiler := NewCompiler()
	q := query.NewAggregateQuery().Sum("bytes").WithContentPackFields("a", "b")

	want, err := compiler.Compile(q)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = compiler.Compile(q.WithLimit(100))
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
