package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"senderguard/internal/blocklist/matching"
	"senderguard/internal/blocklist/models"
	"senderguard/internal/blocklist/service"
	"senderguard/internal/blocklist/store/entry"
	"senderguard/internal/blocklist/store/traffic"
	id "senderguard/pkg/domain"
	dErrors "senderguard/pkg/domain-errors"
	auditmemory "senderguard/pkg/platform/audit/store/memory"
	"senderguard/pkg/platform/sentinel"
	"senderguard/pkg/testutil"
)

type pageBody struct {
	Entries []models.Entry `json:"blacklist"`
	Total   int            `json:"total"`
}

type auditBody struct {
	Records []AuditRecordResponse `json:"records"`
}

type HandlerSuite struct {
	suite.Suite
	entries *entry.InMemoryStore
	traffic *traffic.InMemoryReader
	router  chi.Router
	actor   string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.entries = entry.NewInMemory()
	s.traffic = traffic.NewInMemory()
	svc, err := service.New(s.entries, auditmemory.NewInMemoryStore(), service.WithAllowedRoles(id.RoleAdmin))
	s.Require().NoError(err)
	engine, err := matching.New(s.entries, s.traffic)
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	New(svc, engine, nil).Register(s.router)
	s.actor = uuid.NewString()
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.WithActor(req, s.actor, id.RoleAdmin))
}

func (s *HandlerSuite) createEntry(name string) models.Entry {
	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/blocklist", map[string]any{
		"senderName":    name,
		"effectiveDate": "2026-01-01",
	}))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	return *testutil.UnmarshalResponse[models.Entry](s.T(), rr)
}

func (s *HandlerSuite) TestEntryLifecycle() {
	t := s.T()
	var created models.Entry

	testutil.When(t, "an admin creates an entry", func(t *testing.T) {
		created = s.createEntry("SPAMCO")
		s.Equal("SPAMCO", created.SenderName)
		s.True(created.IsActive)
	})

	testutil.When(t, "the entry is deactivated", func(t *testing.T) {
		rr := s.do(testutil.NewJSONRequest(t, http.MethodPatch, "/blocklist/"+created.ID.String(), map[string]any{"isActive": false}))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "isActive", false)
	})

	testutil.When(t, "the entry is deleted", func(t *testing.T) {
		rr := s.do(testutil.NewRequest(t, http.MethodDelete, "/blocklist/"+created.ID.String()))
		testutil.AssertStatus(t, rr, http.StatusNoContent)

		rr = s.do(testutil.NewRequest(t, http.MethodGet, "/blocklist/"+created.ID.String()))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	testutil.Then(t, "the audit trail survives newest first", func(t *testing.T) {
		rr := s.do(testutil.NewRequest(t, http.MethodGet, "/audit?entityId="+created.ID.String()))
		testutil.AssertStatusOK(t, rr)
		body := testutil.UnmarshalResponse[auditBody](t, rr)
		s.Require().Len(body.Records, 3)
		s.Equal("DELETE", string(body.Records[0].Action))
		s.Equal("DEACTIVATE", string(body.Records[1].Action))
		s.Equal("CREATE", string(body.Records[2].Action))
		s.Equal("SPAMCO", body.Records[0].EntityName)
	})
}

func (s *HandlerSuite) TestCreateErrors() {
	s.createEntry("DUP")

	tests := []struct {
		name   string
		body   string
		status int
		code   dErrors.Code
	}{
		{name: "duplicate sender", body: `{"senderName":"DUP","effectiveDate":"2026-01-01"}`, status: http.StatusConflict, code: dErrors.CodeConflict},
		{name: "missing sender", body: `{"senderName":" ","effectiveDate":"2026-01-01"}`, status: http.StatusBadRequest, code: dErrors.CodeValidation},
		{name: "bad date", body: `{"senderName":"X","effectiveDate":"soon"}`, status: http.StatusBadRequest, code: dErrors.CodeValidation},
		{name: "unknown field", body: `{"senderName":"X","effectiveDate":"2026-01-01","matchCount":9}`, status: http.StatusBadRequest, code: dErrors.CodeBadRequest},
		{name: "malformed json", body: `{`, status: http.StatusBadRequest, code: dErrors.CodeBadRequest},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/blocklist", tt.body))
			testutil.AssertStatusAndError(s.T(), rr, tt.status, string(tt.code))
		})
	}
}

func (s *HandlerSuite) TestUnauthenticatedAndForbidden() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/blocklist",
		map[string]any{"senderName": "X", "effectiveDate": "2026-01-01"}))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))

	req := testutil.WithActor(testutil.NewRequest(s.T(), http.MethodDelete, "/blocklist/"+uuid.NewString()), uuid.NewString(), id.RoleAgent)
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
}

func (s *HandlerSuite) TestPatchRequiresAField() {
	e := s.createEntry("EMPTYPATCH")
	rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPatch, "/blocklist/"+e.ID.String(), `{}`))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
}

func (s *HandlerSuite) TestInvalidID() {
	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/blocklist/not-a-uuid"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
}

func (s *HandlerSuite) TestListFiltersAndPaginates() {
	for i := range 3 {
		s.createEntry(fmt.Sprintf("bulk-%d", i))
	}
	s.createEntry("other")

	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/blocklist?senderName=BULK&limit=2"))
	testutil.AssertStatusOK(s.T(), rr)
	body := testutil.UnmarshalResponse[pageBody](s.T(), rr)
	s.Equal(3, body.Total)
	s.Len(body.Entries, 2)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/blocklist?isActive=maybe"))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *HandlerSuite) TestAuditDateRangeValidation() {
	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/audit?from=2026-02-01&to=2026-01-01"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))

	s.createEntry("RANGE")
	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/audit?actorId="+s.actor))
	testutil.AssertStatusOK(s.T(), rr)
	s.Len(testutil.UnmarshalResponse[auditBody](s.T(), rr).Records, 1)
}

func (s *HandlerSuite) TestRunMatch() {
	s.createEntry("SPAMCO")
	s.traffic.Add(
		models.TrafficRecord{SenderName: "SPAMCO", ProviderID: "1", ProviderName: "acme"},
		models.TrafficRecord{SenderName: "SPAMCO", ProviderID: "2", ProviderName: "globex"},
	)

	rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/blocklist/match"))
	testutil.AssertStatusOK(s.T(), rr)
	body := testutil.UnmarshalResponse[MatchRunResponse](s.T(), rr)
	s.Require().Len(body.Reports, 1)
	s.Equal(int64(2), body.Reports[0].Entry.MatchCount)
	s.Equal([]string{"acme", "globex"}, body.Reports[0].DistinctProviderNames)
}

type partialMatcher struct{}

func (partialMatcher) RunMatch(context.Context) (models.RunResult, error) {
	result := models.RunResult{
		Reports: []models.MatchReport{{Entry: &models.Entry{SenderName: "OK"}}},
		Failures: []models.EntryFailure{{
			EntryID:    id.NewEntryID(),
			SenderName: "BROKEN",
			Matches:    3,
			Err:        sentinel.ErrUnavailable,
			Reason:     "store unavailable",
			Retryable:  true,
		}},
	}
	return result, result.Err()
}

func TestRunMatchPartialFailure(t *testing.T) {
	router := chi.NewRouter()
	var guarded bool
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guarded = true
			next.ServeHTTP(w, r)
		})
	}
	New(nil, partialMatcher{}, nil, WithMatchMiddleware(mw)).Register(router)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/blocklist/match"))
	testutil.AssertStatus(t, rr, http.StatusMultiStatus)
	body := testutil.UnmarshalResponse[MatchRunResponse](t, rr)
	if len(body.Reports) != 1 || len(body.Failures) != 1 || body.Failures[0].SenderName != "BROKEN" {
		t.Fatalf("unexpected body %+v", body)
	}
	if !guarded {
		t.Fatal("match middleware was not applied")
	}
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("effectiveDate", "2026-01-02T03:04:05+02:00")
	if err != nil || !got.Equal(time.Date(2026, 1, 2, 1, 4, 5, 0, time.UTC)) {
		t.Fatalf("got %v, %v", got, err)
	}
	got, err = parseDate("effectiveDate", "2026-01-02")
	if err != nil || !got.Equal(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("got %v, %v", got, err)
	}
}
