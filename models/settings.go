package models

// Visibility controls which site visitors receive the injected snippet.
type Visibility string

const (
	VisibilityEveryone Visibility = "everyone"
	VisibilityLoggedIn Visibility = "logged_in"
	VisibilityAdmin    Visibility = "admin"
)

// Valid reports whether v is one of the known visibility scopes.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityEveryone, VisibilityLoggedIn, VisibilityAdmin:
		return true
	}
	return false
}

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// WidgetSettings is the flat settings record owned by the store. Status and
// Error are derived from the last status check and recomputed whenever Code
// changes.
type WidgetSettings struct {
	Code       string     `json:"code" bson:"code"`
	Visibility Visibility `json:"visibility" bson:"visibility"`
	Status     string     `json:"status" bson:"status"`
	Error      string     `json:"error" bson:"error"`
}

// DefaultWidgetSettings mirrors the record written on first activation.
func DefaultWidgetSettings() WidgetSettings {
	return WidgetSettings{
		Code:       "",
		Visibility: VisibilityEveryone,
		Status:     StatusOffline,
		Error:      "",
	}
}

// StatusResult is the outcome of a single status check. Error is empty iff
// Status is online.
type StatusResult struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}
