package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aquaflow/aquaflow/internal/shared"
)

func bound(v int64) *int64 { return &v }

func TestResolveTieredPrice(t *testing.T) {
	set := TierSet{
		{Start: 0, End: bound(99), UnitPrice: 1000},
		{Start: 100, End: nil, UnitPrice: 900},
	}
	require.NoError(t, set.Validate())

	require.EqualValues(t, 1000, set.Resolve(50))
	require.EqualValues(t, 1000, set.Resolve(0))
	require.EqualValues(t, 1000, set.Resolve(99))
	require.EqualValues(t, 900, set.Resolve(100))
	require.EqualValues(t, 900, set.Resolve(150))
}

func TestResolveEmptyAndUnmatched(t *testing.T) {
	require.EqualValues(t, 0, TierSet{}.Resolve(10))

	// Bounded set with a gap above: unmatched counters are unpriced.
	set := TierSet{{Start: 0, End: bound(49), UnitPrice: 700}}
	require.EqualValues(t, 0, set.Resolve(50))
}

func TestResolveUnboundedFallback(t *testing.T) {
	set := TierSet{
		{Start: 10, End: bound(20), UnitPrice: 500},
		{Start: 30, End: nil, UnitPrice: 400},
	}
	// Any counter outside the bounded ranges falls back to the unbounded
	// tail tier, including counters below every start and in gaps.
	require.EqualValues(t, 400, set.Resolve(5))
	require.EqualValues(t, 400, set.Resolve(25))
	require.EqualValues(t, 400, set.Resolve(1000))
}

func TestValidateOverlap(t *testing.T) {
	set := TierSet{
		{Start: 0, End: bound(50), UnitPrice: 100},
		{Start: 40, End: bound(90), UnitPrice: 200},
	}
	err := set.Validate()
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestValidateTierAfterUnbounded(t *testing.T) {
	set := TierSet{
		{Start: 0, End: bound(50), UnitPrice: 100},
		{Start: 51, End: nil, UnitPrice: 200},
		{Start: 60, End: bound(70), UnitPrice: 50},
	}
	err := set.Validate()
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestValidateRejectsBadTiers(t *testing.T) {
	cases := map[string]TierSet{
		"non-positive price": {{Start: 0, End: bound(10), UnitPrice: 0}},
		"end before start":   {{Start: 20, End: bound(10), UnitPrice: 100}},
		"negative start":     {{Start: -1, End: bound(10), UnitPrice: 100}},
		"adjacent shared bound": {
			{Start: 0, End: bound(50), UnitPrice: 100},
			{Start: 50, End: bound(90), UnitPrice: 200},
		},
	}
	for name, set := range cases {
		require.ErrorIs(t, set.Validate(), shared.ErrValidation, name)
	}
}

func TestParseTierSet(t *testing.T) {
	raw := []byte(`[{"start":0,"end":99,"unit_price":1000},{"start":100,"end":null,"unit_price":900}]`)
	set, err := ParseTierSet(raw)
	require.NoError(t, err)
	require.Len(t, set, 2)
	require.Nil(t, set[1].End)

	_, err = ParseTierSet([]byte(`[{"start":0,"end":99,"unit_price":0}]`))
	require.ErrorIs(t, err, shared.ErrValidation)

	set, err = ParseTierSet(nil)
	require.NoError(t, err)
	require.Empty(t, set)
}
