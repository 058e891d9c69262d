package models

// SeriesRequest selects recent data for one symbol.
type SeriesRequest struct {
	Symbol string `param:"symbol" json:"-" validate:"required,max=16"`
	Limit  int    `query:"limit" json:"-" validate:"gte=0,lte=500"`
}

// SparklineRequest asks for the last Points prices of one symbol.
type SparklineRequest struct {
	Symbol string `param:"symbol" json:"-" validate:"required,max=16"`
	Points int    `query:"points" json:"-" validate:"gte=0,lte=500"`
}

// SessionView is what the local API reports about the current session.
type SessionView struct {
	Authenticated bool      `json:"authenticated"`
	User          *Identity `json:"user,omitempty"`
	Admin         bool      `json:"admin"`
}
