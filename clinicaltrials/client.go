package clinicaltrials

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"medagent/logger"
)

const defaultBaseURL = "https://clinicaltrials.gov/api/v2/studies"

// maxTrials caps how many studies a search accumulates across pages.
const maxTrials = 100

// Client talks to the ClinicalTrials.gov v2 studies API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the registry endpoint, used in tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a registry client.
func NewClient(log logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		logger:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// registry response shapes, limited to the fields we project.

type studiesResponse struct {
	Studies       []study `json:"studies"`
	NextPageToken string  `json:"nextPageToken"`
}

type study struct {
	ProtocolSection protocolSection `json:"protocolSection"`
}

type protocolSection struct {
	IdentificationModule       identificationModule       `json:"identificationModule"`
	StatusModule               statusModule               `json:"statusModule"`
	ConditionsModule           conditionsModule           `json:"conditionsModule"`
	DesignModule               designModule               `json:"designModule"`
	EligibilityModule          eligibilityModule          `json:"eligibilityModule"`
	ArmsInterventionsModule    armsInterventionsModule    `json:"armsInterventionsModule"`
	SponsorCollaboratorsModule sponsorCollaboratorsModule `json:"sponsorCollaboratorsModule"`
	OutcomesModule             outcomesModule             `json:"outcomesModule"`
	ContactsLocationsModule    contactsLocationsModule    `json:"contactsLocationsModule"`
}

type identificationModule struct {
	NCTID          string `json:"nctId"`
	BriefTitle     string `json:"briefTitle"`
	OrgStudyIDInfo struct {
		ID string `json:"id"`
	} `json:"orgStudyIdInfo"`
}

type statusModule struct {
	OverallStatus              string     `json:"overallStatus"`
	PrimaryCompletionDateStruct dateStruct `json:"primaryCompletionDateStruct"`
	StartDateStruct            dateStruct `json:"startDateStruct"`
}

type dateStruct struct {
	Date string `json:"date"`
}

type conditionsModule struct {
	Conditions []string `json:"conditions"`
}

type designModule struct {
	Phases         []string `json:"phases"`
	StudyType      string   `json:"studyType"`
	EnrollmentInfo struct {
		Count int `json:"count"`
	} `json:"enrollmentInfo"`
	DesignInfo struct {
		PrimaryPurpose string `json:"primaryPurpose"`
	} `json:"designInfo"`
}

type eligibilityModule struct {
	StudyPopulation     string `json:"studyPopulation"`
	EligibilityCriteria string `json:"eligibilityCriteria"`
}

type armsInterventionsModule struct {
	ArmGroups []struct {
		Label string `json:"label"`
	} `json:"armGroups"`
	Interventions []struct {
		Name string `json:"name"`
	} `json:"interventions"`
}

type sponsorCollaboratorsModule struct {
	LeadSponsor struct {
		Name string `json:"name"`
	} `json:"leadSponsor"`
	Collaborators []struct {
		Name string `json:"name"`
	} `json:"collaborators"`
}

type outcomesModule struct {
	PrimaryOutcomes []struct {
		Measure string `json:"measure"`
	} `json:"primaryOutcomes"`
}

type contactsLocationsModule struct {
	Locations []apiLocation `json:"locations"`
}

type apiLocation struct {
	Facility    string `json:"facility"`
	Status      string `json:"status"`
	City        string `json:"city"`
	State       string `json:"state"`
	Zip         string `json:"zip"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	Contacts    []struct {
		Name     string `json:"name"`
		Role     string `json:"role"`
		Phone    string `json:"phone"`
		PhoneExt string `json:"phoneExt"`
		Email    string `json:"email"`
	} `json:"contacts"`
	GeoPoint *GeoPoint `json:"geoPoint"`
}

func (c *Client) fetch(ctx context.Context, params url.Values) (*studiesResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	var out studiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode registry response: %w", err)
	}
	return &out, nil
}

// SearchQuery filters a registry search. All fields are optional.
type SearchQuery struct {
	LeadSponsor     string
	DiseaseArea     string
	OverallStatus   string
	LocationCountry string
}

// Search lists trials matching the query, paginating until maxTrials
// studies have been collected or the registry runs out of pages.
func (c *Client) Search(ctx context.Context, query SearchQuery) ([]MinimalTrial, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("fields", strings.Join([]string{
		"protocolSection.identificationModule.nctId",
		"protocolSection.identificationModule.briefTitle",
	}, ","))
	params.Set("pageSize", strconv.Itoa(maxTrials))
	params.Set("countTotal", "true")
	if query.DiseaseArea != "" {
		params.Set("query.cond", query.DiseaseArea)
	}
	if query.LeadSponsor != "" {
		params.Set("query.lead", query.LeadSponsor)
	}
	if query.LocationCountry != "" {
		params.Set("query.locn", query.LocationCountry)
	}
	if query.OverallStatus != "" {
		params.Set("filter.overallStatus", strings.ToUpper(query.OverallStatus))
	}

	var trials []MinimalTrial
	for {
		resp, err := c.fetch(ctx, params)
		if err != nil {
			return nil, err
		}
		if len(resp.Studies) == 0 {
			break
		}
		for _, s := range resp.Studies {
			id := s.ProtocolSection.IdentificationModule
			if id.NCTID == "" {
				continue
			}
			trials = append(trials, MinimalTrial{NCTID: id.NCTID, BriefTitle: id.BriefTitle})
		}
		c.logger.Debug("retrieved registry page",
			logger.Int("page_studies", len(resp.Studies)),
			logger.Int("total", len(trials)))

		if resp.NextPageToken == "" || len(trials) >= maxTrials {
			break
		}
		params.Set("pageToken", resp.NextPageToken)
	}
	if len(trials) > maxTrials {
		trials = trials[:maxTrials]
	}
	return trials, nil
}

// fetchStudy fetches one study by NCT id with the given field projection.
func (c *Client) fetchStudy(ctx context.Context, nctID string, fields []string) (*study, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("fields", strings.Join(fields, ","))
	params.Set("query.id", nctID)

	resp, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Studies) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, nctID)
	}
	return &resp.Studies[0], nil
}

// TrialDetails fetches the detailed projection of one trial.
func (c *Client) TrialDetails(ctx context.Context, nctID string) (*Trial, error) {
	s, err := c.fetchStudy(ctx, nctID, []string{
		"protocolSection.identificationModule.nctId",
		"protocolSection.identificationModule.orgStudyIdInfo",
		"protocolSection.identificationModule.briefTitle",
		"protocolSection.conditionsModule.conditions",
		"protocolSection.designModule.phases",
		"protocolSection.statusModule.overallStatus",
		"protocolSection.statusModule.primaryCompletionDateStruct",
		"protocolSection.designModule.enrollmentInfo",
		"protocolSection.designModule.studyType",
		"protocolSection.eligibilityModule.studyPopulation",
		"protocolSection.designModule.designInfo",
		"protocolSection.armsInterventionsModule.armGroups",
		"protocolSection.sponsorCollaboratorsModule.leadSponsor",
		"protocolSection.armsInterventionsModule.interventions",
		"protocolSection.outcomesModule.primaryOutcomes",
		"protocolSection.statusModule.startDateStruct",
	})
	if err != nil {
		return nil, err
	}

	ps := s.ProtocolSection
	trial := &Trial{
		NCTID:           ps.IdentificationModule.NCTID,
		OrgStudyID:      ps.IdentificationModule.OrgStudyIDInfo.ID,
		BriefTitle:      ps.IdentificationModule.BriefTitle,
		Status:          ps.StatusModule.OverallStatus,
		Condition:       strings.Join(ps.ConditionsModule.Conditions, "|"),
		CompletionDate:  ps.StatusModule.PrimaryCompletionDateStruct.Date,
		EnrollmentCount: ps.DesignModule.EnrollmentInfo.Count,
		StudyType:       ps.DesignModule.StudyType,
		StudyPopulation: ps.EligibilityModule.StudyPopulation,
		Sponsor:         ps.SponsorCollaboratorsModule.LeadSponsor.Name,
		StartDate:       ps.StatusModule.StartDateStruct.Date,
		Purpose:         ps.DesignModule.DesignInfo.PrimaryPurpose,
	}
	if len(ps.DesignModule.Phases) > 0 {
		trial.Phase = ps.DesignModule.Phases[0]
	}
	if len(ps.ArmsInterventionsModule.ArmGroups) > 0 {
		trial.Arm = ps.ArmsInterventionsModule.ArmGroups[0].Label
	}
	if len(ps.ArmsInterventionsModule.Interventions) > 0 {
		trial.Drug = ps.ArmsInterventionsModule.Interventions[0].Name
	}
	if len(ps.OutcomesModule.PrimaryOutcomes) > 0 {
		trial.PrimaryMeasure = ps.OutcomesModule.PrimaryOutcomes[0].Measure
	}
	var collabs []string
	for _, collab := range ps.SponsorCollaboratorsModule.Collaborators {
		if collab.Name != "" {
			collabs = append(collabs, collab.Name)
		}
	}
	trial.Collaborator = strings.Join(collabs, "|")

	return trial, nil
}

// TrialLocations fetches the study sites of one trial. A trial without
// sites yields an empty slice, not an error.
func (c *Client) TrialLocations(ctx context.Context, nctID string) ([]Location, error) {
	s, err := c.fetchStudy(ctx, nctID, []string{
		"protocolSection.contactsLocationsModule.locations",
	})
	if err != nil {
		return nil, err
	}

	apiLocs := s.ProtocolSection.ContactsLocationsModule.Locations
	locations := make([]Location, 0, len(apiLocs))
	for _, loc := range apiLocs {
		out := Location{
			Facility:    loc.Facility,
			Status:      loc.Status,
			City:        loc.City,
			State:       loc.State,
			Zip:         loc.Zip,
			Country:     loc.Country,
			CountryCode: loc.CountryCode,
			GeoPoint:    loc.GeoPoint,
		}
		for _, contact := range loc.Contacts {
			out.Contacts = append(out.Contacts, LocationContact{
				Name:     contact.Name,
				Role:     contact.Role,
				Phone:    contact.Phone,
				PhoneExt: contact.PhoneExt,
				Email:    contact.Email,
			})
		}
		locations = append(locations, out)
	}
	return locations, nil
}

// EligibilityCriteria fetches the raw eligibility-criteria text of one trial.
func (c *Client) EligibilityCriteria(ctx context.Context, nctID string) (string, error) {
	s, err := c.fetchStudy(ctx, nctID, []string{
		"protocolSection.eligibilityModule.eligibilityCriteria",
	})
	if err != nil {
		return "", err
	}
	return s.ProtocolSection.EligibilityModule.EligibilityCriteria, nil
}
