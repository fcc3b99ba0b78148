package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identify/internal/contact/service"
	"identify/internal/contact/store"
	"identify/pkg/testutil"
)

func TestOldestIdentityWinsScenario(t *testing.T) {
	base := time.Date(2023, 4, 1, 9, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(service.New(store.NewInMemoryStore(), service.WithLogger(logger)), logger).Register(r)

	identify := func(t *testing.T, at time.Time, requestID string, body map[string]any) *IdentifyResponse {
		t.Helper()
		req := testutil.WithRequestID(testutil.NewJSONRequest(t, http.MethodPost, "/identify", body), requestID)
		req = req.WithContext(testutil.At(req.Context(), at))
		rr := testutil.DoRequest(r, req)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		return testutil.UnmarshalResponse[IdentifyResponse](t, rr)
	}

	testutil.Given(t, "two primaries where the higher id was created first", func(t *testing.T) {
		first := identify(t, base.Add(time.Hour), "req-1", map[string]any{"email": "doc@hillvalley.edu", "phoneNumber": "111"})
		second := identify(t, base, "req-2", map[string]any{"email": "marty@hillvalley.edu", "phoneNumber": 222})
		require.Equal(t, int64(1), first.Contact.PrimaryContactID)
		require.Equal(t, int64(2), second.Contact.PrimaryContactID)

		testutil.When(t, "a request links them", func(t *testing.T) {
			resp := identify(t, base.Add(2*time.Hour), "req-3", map[string]any{"email": "doc@hillvalley.edu", "phoneNumber": "222"})

			testutil.Then(t, "the earliest created contact stays primary", func(t *testing.T) {
				assert.Equal(t, int64(2), resp.Contact.PrimaryContactID)
				assert.Equal(t, []int64{1}, resp.Contact.SecondaryContactIDs)
			})

			testutil.Then(t, "identifiers are listed primary first", func(t *testing.T) {
				assert.Equal(t, []string{"marty@hillvalley.edu", "doc@hillvalley.edu"}, resp.Contact.Emails)
				assert.Equal(t, []string{"222", "111"}, resp.Contact.PhoneNumbers)
			})
		})

		testutil.When(t, "the demoted contact's email is submitted alone", func(t *testing.T) {
			resp := identify(t, base.Add(3*time.Hour), "req-4", map[string]any{"email": "doc@hillvalley.edu"})

			testutil.Then(t, "it resolves to the surviving primary", func(t *testing.T) {
				assert.Equal(t, int64(2), resp.Contact.PrimaryContactID)
				assert.Equal(t, []int64{1}, resp.Contact.SecondaryContactIDs)
			})
		})
	})
}
