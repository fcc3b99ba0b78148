package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "identify/pkg/domain-errors"
)

func ptr[T any](v T) *T { return &v }

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func TestNewPrimary(t *testing.T) {
	t.Run("requires an identifier", func(t *testing.T) {
		_, err := NewPrimary(nil, nil, t0)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("builds an unlinked primary", func(t *testing.T) {
		c, err := NewPrimary(ptr("a@x.com"), nil, t0)
		require.NoError(t, err)
		assert.True(t, c.IsPrimary())
		assert.Nil(t, c.LinkedID)
		assert.Equal(t, t0, c.CreatedAt)
		assert.Equal(t, t0, c.UpdatedAt)
	})
}

func TestNewSecondary(t *testing.T) {
	primary := &Contact{ID: 7, Email: ptr("a@x.com"), LinkPrecedence: LinkPrecedencePrimary, CreatedAt: t0}

	t.Run("links to the primary", func(t *testing.T) {
		c, err := NewSecondary(ptr("a@x.com"), ptr("999"), primary, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, LinkPrecedenceSecondary, c.LinkPrecedence)
		require.NotNil(t, c.LinkedID)
		assert.Equal(t, int64(7), *c.LinkedID)
	})

	t.Run("rejects a secondary parent", func(t *testing.T) {
		parent := &Contact{ID: 8, LinkPrecedence: LinkPrecedenceSecondary, LinkedID: ptr(int64(7))}
		_, err := NewSecondary(ptr("b@x.com"), nil, parent, t0)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("requires an identifier", func(t *testing.T) {
		_, err := NewSecondary(nil, nil, primary, t0)
		require.Error(t, err)
	})
}

func TestDemoteTo(t *testing.T) {
	c := &Contact{ID: 2, PhoneNumber: ptr("123"), LinkPrecedence: LinkPrecedencePrimary, CreatedAt: t0}

	require.Error(t, c.DemoteTo(2, t0))

	later := t0.Add(time.Minute)
	require.NoError(t, c.DemoteTo(1, later))
	assert.False(t, c.IsPrimary())
	assert.Equal(t, int64(1), *c.LinkedID)
	assert.Equal(t, later, c.UpdatedAt)
	assert.Equal(t, t0, c.CreatedAt)
}

func TestCompareAge(t *testing.T) {
	older := &Contact{ID: 9, CreatedAt: t0}
	newer := &Contact{ID: 1, CreatedAt: t0.Add(time.Second)}
	twin := &Contact{ID: 10, CreatedAt: t0}

	assert.Negative(t, CompareAge(older, newer))
	assert.Positive(t, CompareAge(newer, older))
	assert.Negative(t, CompareAge(older, twin), "equal timestamps fall back to id")

	contacts := []*Contact{newer, twin, older}
	SortByAge(contacts)
	assert.Equal(t, []int64{9, 10, 1}, []int64{contacts[0].ID, contacts[1].ID, contacts[2].ID})
}

func TestContactMatches(t *testing.T) {
	c := &Contact{Email: ptr("a@x.com"), PhoneNumber: ptr("123")}

	assert.True(t, c.Matches(ptr("a@x.com"), ptr("123")))
	assert.False(t, c.Matches(ptr("a@x.com"), nil))
	assert.False(t, c.Matches(ptr("a@x.com"), ptr("999")))

	emailOnly := &Contact{Email: ptr("a@x.com")}
	assert.True(t, emailOnly.Matches(ptr("a@x.com"), nil))
}

func TestCloneIsDeep(t *testing.T) {
	c := &Contact{ID: 3, Email: ptr("a@x.com"), LinkedID: ptr(int64(1))}
	cp := c.Clone()
	*cp.Email = "changed"
	*cp.LinkedID = 99

	assert.Equal(t, "a@x.com", *c.Email)
	assert.Equal(t, int64(1), *c.LinkedID)
	assert.Nil(t, (*Contact)(nil).Clone())
}

func TestConsolidateRequest(t *testing.T) {
	t.Run("blank values are absent", func(t *testing.T) {
		req := &ConsolidateRequest{Email: ptr("  "), PhoneNumber: ptr("")}
		req.Normalize()
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Equal(t, ErrIdentifierRequired, err.Error())
	})

	t.Run("match omits nil fields", func(t *testing.T) {
		req := &ConsolidateRequest{Email: ptr(" a@x.com ")}
		req.Normalize()
		require.NoError(t, req.Validate())

		m := req.Match()
		assert.Equal(t, []string{" a@x.com "}, m.Emails, "non-blank values are matched verbatim")
		assert.Empty(t, m.PhoneNumbers)
		assert.False(t, req.HasBoth())
	})

	t.Run("lock keys are sorted and namespaced", func(t *testing.T) {
		req := &ConsolidateRequest{Email: ptr("z@x.com"), PhoneNumber: ptr("123")}
		assert.Equal(t, []string{"email:z@x.com", "phone:123"}, req.LockKeys())
	})
}

func TestMatchSelects(t *testing.T) {
	m := Match{Emails: []string{"a@x.com"}, PhoneNumbers: []string{"123"}}

	assert.True(t, m.Selects(&Contact{Email: ptr("a@x.com")}))
	assert.True(t, m.Selects(&Contact{PhoneNumber: ptr("123")}))
	assert.False(t, m.Selects(&Contact{Email: ptr("b@x.com"), PhoneNumber: ptr("999")}))
	assert.False(t, Match{}.Selects(&Contact{}), "null fields never match")
	assert.True(t, Match{}.IsEmpty())
}

func TestRelinkScopeSelects(t *testing.T) {
	scope := RelinkScope{
		Match:    Match{PhoneNumbers: []string{"123"}},
		LinkedTo: []int64{5},
		IDs:      []int64{5},
	}

	assert.True(t, scope.Selects(&Contact{ID: 5}))
	assert.True(t, scope.Selects(&Contact{ID: 6, LinkedID: ptr(int64(5))}))
	assert.True(t, scope.Selects(&Contact{ID: 7, PhoneNumber: ptr("123")}))
	assert.False(t, scope.Selects(&Contact{ID: 8, LinkedID: ptr(int64(4))}))
	assert.False(t, scope.IsEmpty())
	assert.True(t, RelinkScope{}.IsEmpty())
}
