package clinicaltrials

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer exposes the trial tools as an MCP stdio server, so any MCP
// client can use the registry without the Bedrock action group in front.
func NewMCPServer(service *Service, version string) *server.MCPServer {
	s := server.NewMCPServer("clinicaltrials", version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("search_trials",
		mcp.WithDescription("Search for clinical trials based on criteria"),
		mcp.WithString("lead_sponsor_name", mcp.Description("Name of the lead sponsor organization, f. ex. Boehringer Ingelheim")),
		mcp.WithString("disease_area", mcp.Description("Disease or condition being studied, f. ex. lung cancer")),
		mcp.WithString("overall_status", mcp.Description("Current overall status of the study, f. ex. RECRUITING")),
		mcp.WithString("location_country", mcp.Description("Country where the study is conducted, f. ex. United States")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		trials, err := service.SearchTrials(ctx, SearchQuery{
			LeadSponsor:     req.GetString("lead_sponsor_name", ""),
			DiseaseArea:     req.GetString("disease_area", ""),
			OverallStatus:   req.GetString("overall_status", ""),
			LocationCountry: req.GetString("location_country", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(trials)
	})

	s.AddTool(mcp.NewTool("trial_details",
		mcp.WithDescription("Get detailed information for a specific clinical trial"),
		mcp.WithString("nct_id", mcp.Required(), mcp.Description("The NCT ID of the trial, f. ex. NCT05888888")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		nctID, err := req.RequireString("nct_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		trial, err := service.TrialDetails(ctx, nctID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(trial)
	})

	s.AddTool(mcp.NewTool("closest_trials",
		mcp.WithDescription("Find trials closest to the user's location"),
		mcp.WithString("nct_ids", mcp.Required(), mcp.Description("Comma-separated list of NCT IDs")),
		mcp.WithString("city", mcp.Description("User's city")),
		mcp.WithString("state", mcp.Description("User's state/province")),
		mcp.WithString("zip_code", mcp.Description("User's ZIP/postal code")),
		mcp.WithString("country", mcp.Description("User's country")),
		mcp.WithNumber("max_distance", mcp.Description("Maximum distance in kilometers")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawIDs, err := req.RequireString("nct_ids")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		trials, err := service.ClosestTrials(ctx, ClosestQuery{
			NCTIDs:        splitIDs(rawIDs),
			City:          req.GetString("city", ""),
			State:         req.GetString("state", ""),
			ZipCode:       req.GetString("zip_code", ""),
			Country:       req.GetString("country", ""),
			MaxDistanceKm: req.GetFloat("max_distance", 0),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(trials)
	})

	s.AddTool(mcp.NewTool("inclusion_criteria",
		mcp.WithDescription("Get inclusion criteria for a clinical trial"),
		mcp.WithString("nct_id", mcp.Required(), mcp.Description("The NCT ID of the trial, f. ex. NCT05888888")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		nctID, err := req.RequireString("nct_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		criteria, err := service.InclusionCriteria(ctx, nctID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(criteria), nil
	})

	s.AddTool(mcp.NewTool("exclusion_criteria",
		mcp.WithDescription("Get exclusion criteria for a clinical trial"),
		mcp.WithString("nct_id", mcp.Required(), mcp.Description("The NCT ID of the trial, f. ex. NCT05888888")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		nctID, err := req.RequireString("nct_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		criteria, err := service.ExclusionCriteria(ctx, nctID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(criteria), nil
	})

	return s
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
