// Package clinicaltrials queries the ClinicalTrials.gov v2 registry and
// exposes the results as agent tools over HTTP and MCP.
package clinicaltrials

import "errors"

// ErrNotFound indicates no trial matched the given NCT id.
var ErrNotFound = errors.New("trial not found")

// ErrNoLocation indicates a closest-trials query without any address part.
var ErrNoLocation = errors.New("at least one location parameter (city, state, zip, or country) must be provided")

// MinimalTrial is the search-result projection: just enough for the agent
// to pick a trial to drill into.
type MinimalTrial struct {
	NCTID      string `json:"nct_id"`
	BriefTitle string `json:"brief_title"`
}

// Trial is the detailed projection of one registry study.
type Trial struct {
	NCTID           string `json:"nct_id"`
	Phase           string `json:"phase,omitempty"`
	OrgStudyID      string `json:"org_study_id,omitempty"`
	Status          string `json:"status,omitempty"`
	Condition       string `json:"condition,omitempty"`
	CompletionDate  string `json:"completion_date,omitempty"`
	EnrollmentCount int    `json:"enrollment_count,omitempty"`
	StudyType       string `json:"study_type,omitempty"`
	Arm             string `json:"arm,omitempty"`
	Drug            string `json:"drug,omitempty"`
	StudyPopulation string `json:"study_population,omitempty"`
	Sponsor         string `json:"sponsor,omitempty"`
	Collaborator    string `json:"collaborator,omitempty"`
	StartDate       string `json:"start_date,omitempty"`
	PrimaryMeasure  string `json:"primary_measure,omitempty"`
	Purpose         string `json:"purpose,omitempty"`
	BriefTitle      string `json:"brief_title,omitempty"`
}

// LocationContact is a study-site contact.
type LocationContact struct {
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	Phone    string `json:"phone,omitempty"`
	PhoneExt string `json:"phone_ext,omitempty"`
	Email    string `json:"email,omitempty"`
}

// GeoPoint is a study-site coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location is one study site.
type Location struct {
	Facility    string            `json:"facility,omitempty"`
	Status      string            `json:"status,omitempty"`
	City        string            `json:"city,omitempty"`
	State       string            `json:"state,omitempty"`
	Zip         string            `json:"zip,omitempty"`
	Country     string            `json:"country,omitempty"`
	CountryCode string            `json:"country_code,omitempty"`
	Contacts    []LocationContact `json:"contacts,omitempty"`
	GeoPoint    *GeoPoint         `json:"geo_point,omitempty"`
}

// NearbyTrial pairs a trial with its study site closest to the user.
type NearbyTrial struct {
	NCTID           string   `json:"nct_id"`
	DistanceKm      float64  `json:"distance_km"`
	ClosestLocation Location `json:"closest_location"`
}
