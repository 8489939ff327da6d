// Package provision drives the two-step account setup against the
// registration and doBoard APIs. Step one (CreateAccount) registers the admin
// email and triggers a confirmation mail; step two (ConfigureAccount) runs
// after the email is confirmed and ends with a saved widget snippet.
package provision

import (
	"context"
	"strconv"
	"time"

	"spotfix-widget-service/internal/fault"
	"spotfix-widget-service/internal/logger"
	"spotfix-widget-service/internal/remote"
	"spotfix-widget-service/internal/snippet"
	"spotfix-widget-service/internal/store"
	"spotfix-widget-service/internal/telemetry"
	"spotfix-widget-service/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Orchestrator owns the provisioning flow and its persisted checkpoints.
// Every step persists what it learned before the next call, so a failed run
// can resume without repeating the registration email.
type Orchestrator struct {
	client       *remote.Client
	store        store.Store
	metrics      *telemetry.Metrics
	cleanTalkURL string
	doBoardURL   string
	bundleURL    string
	adminEmail   string
	siteName     string
	projectName  string
}

// Options configures an Orchestrator.
type Options struct {
	CleanTalkURL string
	DoBoardURL   string
	BundleURL    string
	AdminEmail   string
	SiteName     string
	ProjectName  string
	Metrics      *telemetry.Metrics
}

func NewOrchestrator(client *remote.Client, st store.Store, opts Options) *Orchestrator {
	return &Orchestrator{
		client:       client,
		store:        st,
		metrics:      opts.Metrics,
		cleanTalkURL: opts.CleanTalkURL,
		doBoardURL:   opts.DoBoardURL,
		bundleURL:    opts.BundleURL,
		adminEmail:   opts.AdminEmail,
		siteName:     opts.SiteName,
		projectName:  opts.ProjectName,
	}
}

// CreateAccount registers the admin email with the registration service and
// tries to open a doBoard session. Any previous provisioning state is wiped
// first: a retry must not mix tokens from two attempts. The authorize step is
// best-effort; registration alone already triggered the confirmation email,
// so its failure is logged and the call still succeeds.
func (o *Orchestrator) CreateAccount(ctx context.Context) (*models.CreateAccountResult, error) {
	tracer := otel.Tracer("provision")
	ctx, span := tracer.Start(ctx, "provision.create_account")
	defer span.End()

	if err := o.store.ResetProvisioning(ctx); err != nil {
		return nil, err
	}

	if o.adminEmail == "" {
		return nil, fault.Validation("Admin email is not configured.")
	}
	span.SetAttributes(attribute.String("provision.email", o.adminEmail))

	userToken, err := o.requestAPIKey(ctx)
	if err != nil {
		return nil, err
	}

	attemptID := uuid.NewString()
	if err := o.store.UpdateProvisioning(ctx, map[string]string{
		store.FieldAttemptID: attemptID,
		store.FieldUserToken: userToken,
		store.FieldEmail:     o.adminEmail,
		store.FieldCreatedAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return nil, err
	}

	result := &models.CreateAccountResult{
		Message: "Account registration started! A confirmation email has been sent to " +
			o.adminEmail + ". Please check your inbox and click the confirmation link. " +
			"After confirming your email, finish the configuration step.",
		Email:     o.adminEmail,
		UserToken: userToken,
	}

	sessionID, userID, accountID, err := o.authorizeUser(ctx, userToken)
	if err != nil {
		logger.Warn("user authorization failed, continuing without session",
			"attempt_id", attemptID, "error", err.Error())
		span.SetAttributes(attribute.Bool("provision.authorized", false))
		return result, nil
	}

	if err := o.store.UpdateProvisioning(ctx, map[string]string{
		store.FieldSessionID: sessionID,
		store.FieldUserID:    userID,
		store.FieldAccountID: accountID,
	}); err != nil {
		return nil, err
	}

	result.SessionID = sessionID
	result.UserID = userID
	result.AccountID = accountID
	span.SetAttributes(attribute.Bool("provision.authorized", true))
	return result, nil
}

// ConfigureAccount finishes setup once the admin has confirmed the email:
// account, then project, then project token, then the saved snippet. Missing
// session state rejects the call before any outbound request.
func (o *Orchestrator) ConfigureAccount(ctx context.Context) (*models.ConfigureAccountResult, error) {
	tracer := otel.Tracer("provision")
	ctx, span := tracer.Start(ctx, "provision.configure_account")
	defer span.End()

	state, err := o.store.LoadProvisioning(ctx)
	if err != nil {
		return nil, err
	}
	if state.AccountID == "" || state.SessionID == "" {
		return nil, fault.Validation("Account ID or session ID is missing. Please create account first.")
	}

	accountID, err := o.addAccount(ctx, state.AccountID, state.SessionID)
	if err != nil {
		return nil, err
	}
	if err := o.store.UpdateProvisioning(ctx, map[string]string{
		store.FieldAccountID: accountID,
	}); err != nil {
		return nil, err
	}

	projectID, err := o.addProject(ctx, accountID, state.SessionID)
	if err != nil {
		return nil, err
	}
	if err := o.store.UpdateProvisioning(ctx, map[string]string{
		store.FieldProjectID: projectID,
	}); err != nil {
		return nil, err
	}

	projectToken, err := o.getProjectToken(ctx, accountID, state.SessionID)
	if err != nil {
		return nil, err
	}
	if err := o.store.UpdateProvisioning(ctx, map[string]string{
		store.FieldProjectToken: projectToken,
	}); err != nil {
		return nil, err
	}

	code := snippet.Build(snippet.Params{
		ProjectToken: projectToken,
		ProjectID:    projectID,
		AccountID:    accountID,
	}, o.bundleURL)

	settings, err := o.store.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}
	settings.Code = code
	if err := o.store.SaveSettings(ctx, settings); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("provision.account_id", accountID),
		attribute.String("provision.project_id", projectID),
	)

	return &models.ConfigureAccountResult{
		Message:      "Account configured successfully!",
		AccountID:    accountID,
		ProjectID:    projectID,
		ProjectToken: projectToken,
		Code:         code,
	}, nil
}

func (o *Orchestrator) requestAPIKey(ctx context.Context) (string, error) {
	data, err := o.call(ctx, "get_api_key", o.cleanTalkURL, map[string]string{
		"method_name":  "get_api_key",
		"email":        o.adminEmail,
		"product_name": "doboard",
	})
	if err != nil {
		return "", prefixed(err, "Failed to connect to registration service: ")
	}

	token := nestedString(data, "data", "user_token")
	if token == "" {
		return "", fault.Application("Unexpected response from registration service.")
	}
	return token, nil
}

func (o *Orchestrator) authorizeUser(ctx context.Context, userToken string) (sessionID, userID, accountID string, err error) {
	data, err := o.call(ctx, "user_authorize", o.doBoardURL+"user_authorize", map[string]string{
		"user_token": userToken,
	})
	if err != nil {
		return "", "", "", prefixed(err, "Failed to authorize user: ")
	}

	sessionID = nestedString(data, "data", "session_id")
	userID = nestedString(data, "data", "user_id")
	accountID = firstAccountID(data)
	return sessionID, userID, accountID, nil
}

func (o *Orchestrator) addAccount(ctx context.Context, accountID, sessionID string) (string, error) {
	data, err := o.call(ctx, "account_add", o.doBoardURL+"account_add", map[string]string{
		"account_id": accountID,
		"session_id": sessionID,
		"org_name":   o.siteName,
	})
	if err != nil {
		return "", prefixed(err, "Failed to add account: ")
	}

	// The API may hand back a fresh account id, either directly or inside
	// the accounts list. Keep the old one when it does not.
	if id := nestedString(data, "data", "account_id"); id != "" {
		return id, nil
	}
	if id := firstAccountID(data); id != "" {
		return id, nil
	}
	return accountID, nil
}

func (o *Orchestrator) addProject(ctx context.Context, accountID, sessionID string) (string, error) {
	data, err := o.call(ctx, "project_add", o.doBoardURL+accountID+"/project_add", map[string]string{
		"session_id":   sessionID,
		"name":         o.projectName,
		"project_type": "PUBLIC",
	})
	if err != nil {
		return "", prefixed(err, "Failed to add project: ")
	}
	return nestedString(data, "data", "project_id"), nil
}

func (o *Orchestrator) getProjectToken(ctx context.Context, accountID, sessionID string) (string, error) {
	data, err := o.call(ctx, "project_get", o.doBoardURL+accountID+"/project_get", map[string]string{
		"session_id": sessionID,
		"name":       o.projectName,
	})
	if err != nil {
		return "", prefixed(err, "Failed to get project: ")
	}

	inner, _ := data["data"].(map[string]interface{})
	projects, _ := inner["projects"].([]interface{})
	if len(projects) > 0 {
		if first, ok := projects[0].(map[string]interface{}); ok {
			return asString(first["project_token"]), nil
		}
	}
	return "", nil
}

func (o *Orchestrator) call(ctx context.Context, endpoint, url string, fields map[string]string) (map[string]interface{}, error) {
	data, err := o.client.PostForm(ctx, url, fields)
	if o.metrics != nil {
		o.metrics.RecordProvisioningCall(endpoint, err == nil)
	}
	return data, err
}

// prefixed keeps the fault kind while prepending the step context.
func prefixed(err error, msg string) error {
	return fault.Wrap(fault.KindOf(err), err, "%s%s", msg, err.Error())
}

// nestedString reads data[outer][inner] as a string, tolerating numeric ids.
func nestedString(data map[string]interface{}, outer, inner string) string {
	obj, ok := data[outer].(map[string]interface{})
	if !ok {
		return ""
	}
	return asString(obj[inner])
}

// firstAccountID reads data.accounts[0].account_id.
func firstAccountID(data map[string]interface{}) string {
	obj, ok := data["data"].(map[string]interface{})
	if !ok {
		return ""
	}
	accounts, _ := obj["accounts"].([]interface{})
	if len(accounts) == 0 {
		return ""
	}
	first, ok := accounts[0].(map[string]interface{})
	if !ok {
		return ""
	}
	return asString(first["account_id"])
}

// asString renders a decoded JSON scalar. Ids arrive as numbers or strings
// depending on the endpoint.
func asString(v interface{}) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		return ""
	}
}
