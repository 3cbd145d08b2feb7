package clinicaltrials

import (
	"context"
	"sort"
	"strings"

	"medagent/logger"
)

const defaultMaxDistanceKm = 500

// Service implements the five trial tools on top of the registry client
// and a geocoder.
type Service struct {
	client   *Client
	geocoder Geocoder
	logger   logger.Logger
}

// NewService creates a Service.
func NewService(client *Client, geocoder Geocoder, log logger.Logger) *Service {
	return &Service{client: client, geocoder: geocoder, logger: log}
}

// SearchTrials lists trials matching the query.
func (s *Service) SearchTrials(ctx context.Context, query SearchQuery) ([]MinimalTrial, error) {
	return s.client.Search(ctx, query)
}

// TrialDetails fetches the detailed projection of one trial.
func (s *Service) TrialDetails(ctx context.Context, nctID string) (*Trial, error) {
	return s.client.TrialDetails(ctx, nctID)
}

// ClosestQuery locates the user for a nearby-trials search. At least one
// address component must be set.
type ClosestQuery struct {
	NCTIDs        []string
	City          string
	State         string
	ZipCode       string
	Country       string
	MaxDistanceKm float64
}

func (q ClosestQuery) address() (string, error) {
	var parts []string
	for _, part := range []string{q.City, q.State, q.ZipCode, q.Country} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoLocation
	}
	return strings.Join(parts, ", "), nil
}

// ClosestTrials finds, for each given trial, the study site closest to the
// user, and returns the trials sorted by distance. Trials without sites in
// range are omitted; per-trial lookup failures are logged and skipped so
// one bad id does not sink the whole query.
func (s *Service) ClosestTrials(ctx context.Context, query ClosestQuery) ([]NearbyTrial, error) {
	address, err := query.address()
	if err != nil {
		return nil, err
	}
	lat, lon, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	maxDistance := query.MaxDistanceKm
	if maxDistance <= 0 {
		maxDistance = defaultMaxDistanceKm
	}

	var nearby []NearbyTrial
	for _, nctID := range query.NCTIDs {
		nctID = strings.TrimSpace(nctID)
		if nctID == "" {
			continue
		}
		locations, err := s.client.TrialLocations(ctx, nctID)
		if err != nil {
			s.logger.Warn("failed to fetch trial locations",
				logger.String("nct_id", nctID),
				logger.Error(err))
			continue
		}
		distance, loc := closestLocation(locations, lat, lon, maxDistance)
		if loc == nil {
			continue
		}
		nearby = append(nearby, NearbyTrial{
			NCTID:           nctID,
			DistanceKm:      distance,
			ClosestLocation: *loc,
		})
	}

	sort.Slice(nearby, func(i, j int) bool { return nearby[i].DistanceKm < nearby[j].DistanceKm })
	return nearby, nil
}

// InclusionCriteria returns the trial's inclusion criteria as a numbered
// list.
func (s *Service) InclusionCriteria(ctx context.Context, nctID string) (string, error) {
	criteria, err := s.client.EligibilityCriteria(ctx, nctID)
	if err != nil {
		return "", err
	}
	return parseInclusionCriteria(criteria), nil
}

// ExclusionCriteria returns the trial's exclusion criteria as a numbered
// list, or ErrNotFound when the eligibility block has no exclusion
// section.
func (s *Service) ExclusionCriteria(ctx context.Context, nctID string) (string, error) {
	criteria, err := s.client.EligibilityCriteria(ctx, nctID)
	if err != nil {
		return "", err
	}
	formatted, ok := parseExclusionCriteria(criteria)
	if !ok {
		return "", ErrNotFound
	}
	return formatted, nil
}
