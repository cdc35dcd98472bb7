package models

// ListNarrativesRequest filters the taxonomy listing.
type ListNarrativesRequest struct {
	Group string `query:"group" default:"all" validate:"oneof=all core supplementary"`
}

// StartAnalysisRequest kicks off a batch run. When StartDate/EndDate are
// omitted, the Period preset anchored at the latest supported date is used.
type StartAnalysisRequest struct {
	NarrativeIDs []string `json:"narrative_ids" validate:"required,min=1,dive,required"`
	StartDate    string   `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string   `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Period       string   `json:"period" default:"180d" validate:"oneof=30d 90d 180d 365d"`
}

// ResultsRequest selects the target date for derived moves and alerts.
// Defaults to the last date of each fetched series.
type ResultsRequest struct {
	Date      string  `query:"date" validate:"omitempty,datetime=2006-01-02"`
	Threshold float64 `query:"threshold" default:"1.0" validate:"gt=0"`
}
