package cvpartner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/locvowork/employee_directory/internal/domain"
	"github.com/locvowork/employee_directory/internal/source/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	hc := httpx.NewClient(ts.Client(), httpx.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond})
	return NewClient(ts.URL+"/", "secret", hc)
}

func TestFetchAllEmployeesPages(t *testing.T) {
	var offsets []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		offset := r.URL.Query().Get("offset")
		offsets = append(offsets, offset)

		n := pageSize
		if offset != "0" {
			n = 2
		}
		users := make([]User, n)
		start, _ := strconv.Atoi(offset)
		for i := range users {
			users[i] = User{UserID: fmt.Sprint(start + i), Email: fmt.Sprintf("u%d@company.no", start+i)}
		}
		json.NewEncoder(w).Encode(users)
	})

	users, err := c.FetchAllEmployees(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, pageSize+2)
	assert.Equal(t, []string{"0", "100"}, offsets)
}

func TestFetchAllEmployeesFailureIsFetchError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	users, err := c.FetchAllEmployees(context.Background())
	assert.Nil(t, users)
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestFetchCV(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/cvs/u1/cv1", r.URL.Path)
		w.Write([]byte(`{
			"_id": "cv1",
			"technologies": [{"technology_skills": [{"tags": {"no": "Go"}}, {"tags": {"int": "Kotlin"}}]}],
			"project_experiences": [{
				"_id": "p1",
				"customer": {"no": "Acme"},
				"description": {"int": "Platform"},
				"month_from": "3", "year_from": 2021, "month_to": "", "year_to": null,
				"project_experience_skills": [{"tags": {"no": "Go"}}],
				"roles": [{"_id": "r1", "name": {"no": "Utvikler"}, "summary": {"no": "Backend"}}]
			}]
		}`))
	})

	cv, err := c.FetchCV(context.Background(), "u1", "cv1")
	require.NoError(t, err)
	require.Len(t, cv.ProjectExperiences, 1)
	p := cv.ProjectExperiences[0]
	assert.Equal(t, "Acme", p.Customer.Text())
	assert.Equal(t, FlexInt(3), p.MonthFrom)
	assert.Equal(t, FlexInt(2021), p.YearFrom)
	assert.Equal(t, FlexInt(0), p.YearTo)
	assert.Equal(t, "Utvikler", p.Roles[0].Name.Text())
}

func TestLocalizedTextText(t *testing.T) {
	assert.Equal(t, "norsk", LocalizedText{"int": "intl", "no": "norsk"}.Text())
	assert.Equal(t, "intl", LocalizedText{"int": "intl", "no": " "}.Text())
	assert.Equal(t, "a", LocalizedText{"zz": "z", "aa": "a"}.Text())
	assert.Equal(t, "", LocalizedText(nil).Text())
}
