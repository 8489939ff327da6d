package models

// ProvisioningState accumulates the result of the multi-step doBoard
// provisioning workflow. Each field is populated only after its remote call
// succeeds; it is reset at the start of every create-account attempt and has
// no TTL — a stale session surfaces as a remote-call failure.
type ProvisioningState struct {
	AttemptID    string `json:"attempt_id" bson:"attempt_id"`
	UserToken    string `json:"user_token" bson:"user_token"`
	Email        string `json:"email" bson:"email"`
	AccountID    string `json:"account_id" bson:"account_id"`
	SessionID    string `json:"session_id" bson:"session_id"`
	UserID       string `json:"user_id" bson:"user_id"`
	ProjectID    string `json:"project_id" bson:"project_id"`
	ProjectToken string `json:"project_token" bson:"project_token"`
	CreatedAt    string `json:"created_at" bson:"created_at"`
}

// Masked returns a copy safe for the admin UI: secrets are reduced to their
// last four characters.
func (s ProvisioningState) Masked() ProvisioningState {
	out := s
	out.UserToken = maskToken(s.UserToken)
	out.SessionID = maskToken(s.SessionID)
	out.ProjectToken = maskToken(s.ProjectToken)
	return out
}

func maskToken(v string) string {
	if len(v) <= 4 {
		return v
	}
	return "****" + v[len(v)-4:]
}

// CreateAccountResult is returned by the create-account operation. Success
// with empty SessionID/AccountID means the authorize step failed and the
// admin must confirm the registration email before configuring.
type CreateAccountResult struct {
	Message   string `json:"message"`
	Email     string `json:"email"`
	UserToken string `json:"user_token"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`
}

// ConfigureAccountResult is returned by the configure-account operation once
// the project exists and the snippet has been generated and saved.
type ConfigureAccountResult struct {
	Message      string `json:"message"`
	AccountID    string `json:"account_id"`
	ProjectID    string `json:"project_id"`
	ProjectToken string `json:"project_token"`
	Code         string `json:"code"`
}
