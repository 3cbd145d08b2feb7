package clinicaltrials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"medagent/logger"
)

func registryServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(logger.NewNoop(), WithBaseURL(srv.URL))
}

func TestSearchSinglePage(t *testing.T) {
	client := registryServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("query.cond") != "lung cancer" {
			t.Errorf("query.cond = %q", q.Get("query.cond"))
		}
		if q.Get("filter.overallStatus") != "RECRUITING" {
			t.Errorf("filter.overallStatus = %q", q.Get("filter.overallStatus"))
		}
		fmt.Fprint(w, `{"studies":[
			{"protocolSection":{"identificationModule":{"nctId":"NCT01","briefTitle":"Trial One"}}},
			{"protocolSection":{"identificationModule":{"nctId":"NCT02","briefTitle":"Trial Two"}}}
		]}`)
	})

	trials, err := client.Search(context.Background(), SearchQuery{
		DiseaseArea:   "lung cancer",
		OverallStatus: "recruiting",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trials) != 2 {
		t.Fatalf("expected 2 trials, got %d", len(trials))
	}
	if trials[0].NCTID != "NCT01" || trials[0].BriefTitle != "Trial One" {
		t.Errorf("trials[0] = %v", trials[0])
	}
}

func TestSearchFollowsPagination(t *testing.T) {
	page := 0
	client := registryServer(t, func(w http.ResponseWriter, r *http.Request) {
		page++
		switch r.URL.Query().Get("pageToken") {
		case "":
			fmt.Fprint(w, `{"studies":[{"protocolSection":{"identificationModule":{"nctId":"NCT01","briefTitle":"A"}}}],"nextPageToken":"tok"}`)
		case "tok":
			fmt.Fprint(w, `{"studies":[{"protocolSection":{"identificationModule":{"nctId":"NCT02","briefTitle":"B"}}}]}`)
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
		}
	})

	trials, err := client.Search(context.Background(), SearchQuery{DiseaseArea: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trials) != 2 || page != 2 {
		t.Errorf("trials = %d, pages = %d", len(trials), page)
	}
}

func TestSearchServerError(t *testing.T) {
	client := registryServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := client.Search(context.Background(), SearchQuery{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestTrialDetails(t *testing.T) {
	client := registryServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query.id"); got != "NCT05888888" {
			t.Errorf("query.id = %q", got)
		}
		fmt.Fprint(w, `{"studies":[{"protocolSection":{
			"identificationModule":{"nctId":"NCT05888888","briefTitle":"Melanoma Study","orgStudyIdInfo":{"id":"ORG-1"}},
			"statusModule":{"overallStatus":"RECRUITING","primaryCompletionDateStruct":{"date":"2027-01"},"startDateStruct":{"date":"2024-06"}},
			"conditionsModule":{"conditions":["Melanoma","Skin Cancer"]},
			"designModule":{"phases":["PHASE3"],"studyType":"INTERVENTIONAL","enrollmentInfo":{"count":420},"designInfo":{"primaryPurpose":"TREATMENT"}},
			"armsInterventionsModule":{"armGroups":[{"label":"Arm A"}],"interventions":[{"name":"Pembrolizumab"}]},
			"sponsorCollaboratorsModule":{"leadSponsor":{"name":"Acme Pharma"},"collaborators":[{"name":"Uni Hospital"},{"name":"Cancer Center"}]},
			"outcomesModule":{"primaryOutcomes":[{"measure":"Overall survival"}]}
		}}]}`)
	})

	trial, err := client.TrialDetails(context.Background(), "NCT05888888")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trial.NCTID != "NCT05888888" || trial.Phase != "PHASE3" {
		t.Errorf("trial = %+v", trial)
	}
	if trial.Condition != "Melanoma|Skin Cancer" {
		t.Errorf("condition = %q", trial.Condition)
	}
	if trial.Collaborator != "Uni Hospital|Cancer Center" {
		t.Errorf("collaborator = %q", trial.Collaborator)
	}
	if trial.EnrollmentCount != 420 || trial.Drug != "Pembrolizumab" {
		t.Errorf("trial = %+v", trial)
	}
}

func TestTrialDetailsNotFound(t *testing.T) {
	client := registryServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"studies":[]}`)
	})

	_, err := client.TrialDetails(context.Background(), "NCT00000000")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTrialLocations(t *testing.T) {
	client := registryServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"studies":[{"protocolSection":{"contactsLocationsModule":{"locations":[
			{"facility":"Uni Hospital","city":"Munich","country":"Germany","geoPoint":{"lat":48.1,"lon":11.5},
			 "contacts":[{"name":"Dr. A","role":"CONTACT","phone":"123"}]},
			{"facility":"No Coords","city":"Berlin"}
		]}}}]}`)
	})

	locations, err := client.TrialLocations(context.Background(), "NCT01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(locations) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(locations))
	}
	if locations[0].GeoPoint == nil || locations[0].GeoPoint.Lat != 48.1 {
		t.Errorf("geo point = %v", locations[0].GeoPoint)
	}
	if len(locations[0].Contacts) != 1 || locations[0].Contacts[0].Name != "Dr. A" {
		t.Errorf("contacts = %v", locations[0].Contacts)
	}
	if locations[1].GeoPoint != nil {
		t.Error("expected nil geo point for second location")
	}
}
