package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Idosegev23/finhealer/internal/vendor"
)

func TestCatalogIntegrity(t *testing.T) {
	seen := make(map[string]bool)
	for _, c := range All() {
		require.NotEmpty(t, c.Name)
		require.NotEmpty(t, c.Group, "category %s has no group", c.Name)
		assert.False(t, seen[c.Name], "duplicate category %s", c.Name)
		seen[c.Name] = true

		for _, kw := range c.Keywords {
			assert.Equal(t, vendor.Normalize(kw), kw, "keyword %q of %s is not normalized", kw, c.Name)
		}
	}
	assert.True(t, Exists(Fallback))
}

func TestFind(t *testing.T) {
	c, ok := Find(" מזון ")
	require.True(t, ok)
	assert.Equal(t, GroupLiving, c.Group)

	_, ok = Find("לא קיים")
	assert.False(t, ok)
}

func TestNamesAndGroupsOrder(t *testing.T) {
	names := Names()
	require.Len(t, names, len(All()))
	assert.Equal(t, "מזון", names[0])
	assert.Equal(t, Fallback, names[len(names)-1])

	groups := Groups()
	assert.Equal(t, GroupLiving, groups[0])
	assert.Contains(t, groups, GroupIncome)

	for _, c := range ByGroup(GroupIncome) {
		assert.Equal(t, GroupIncome, c.Group)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	all[0].Name = "changed"
	assert.Equal(t, "מזון", All()[0].Name)
}

func TestMatchKeyword(t *testing.T) {
	tests := []struct {
		vendor string
		want   string
		ok     bool
	}{
		{vendor.Normalize("שופרסל דיל 412"), "מזון", true},
		{vendor.Normalize("NETFLIX.COM"), "מנויים", true},
		{vendor.Normalize("סופר-פארם"), "בריאות", true},
		{vendor.Normalize("פז יקנעם"), "דלק", true},
		{"פזית", "", false},
		{"", "", false},
		{"חנות לא מוכרת", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.vendor, func(t *testing.T) {
			c, ok := MatchKeyword(tt.vendor)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, c.Name)
		})
	}
}
