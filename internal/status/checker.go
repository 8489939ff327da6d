// Package status decides whether the Spotfix widget is reachable and
// actually installed on the site's public homepage.
package status

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"spotfix-widget-service/internal/fault"
	"spotfix-widget-service/internal/logger"
	"spotfix-widget-service/internal/remote"
	"spotfix-widget-service/internal/snippet"
	"spotfix-widget-service/models"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const homepageRedirectCap = 5

// Checker runs the status verification state machine. Every stage
// short-circuits to offline except the homepage self-probe, which fails open:
// a firewall blocking self-requests must not stop the admin from enabling
// the widget.
type Checker struct {
	client          *remote.Client
	siteURL         string
	bundleURL       string
	probeTimeout    time.Duration
	homepageTimeout time.Duration
}

func NewChecker(client *remote.Client, siteURL, bundleURL string, probeTimeout, homepageTimeout time.Duration) *Checker {
	return &Checker{
		client:          client,
		siteURL:         siteURL,
		bundleURL:       bundleURL,
		probeTimeout:    probeTimeout,
		homepageTimeout: homepageTimeout,
	}
}

// Check validates the stored widget code end to end and returns the derived
// status record. It never returns an error; failures are encoded in the
// result.
func (ch *Checker) Check(ctx context.Context, code string) models.StatusResult {
	tracer := otel.Tracer("status-checker")
	ctx, span := tracer.Start(ctx, "status.check")
	defer span.End()

	if strings.TrimSpace(code) == "" {
		span.SetAttributes(attribute.String("status.stage", "empty"))
		return offline("Spotfix code is not configured.")
	}

	params, ok := snippet.Parse(code, ch.bundleURL)
	if !ok {
		span.SetAttributes(attribute.String("status.stage", "parse"))
		return offline("Invalid Spotfix code. Missing required parameters (projectToken, projectId, or accountId).")
	}

	scriptURL := snippet.ScriptURL(params, ch.bundleURL)
	span.SetAttributes(attribute.String("status.script_url", scriptURL))

	if result := ch.probeWidget(ctx, scriptURL); result != nil {
		span.SetAttributes(attribute.String("status.stage", "probe"))
		return *result
	}

	if result := ch.crossCheckHomepage(ctx, scriptURL); result != nil {
		span.SetAttributes(attribute.String("status.stage", "homepage"))
		return *result
	}

	span.SetAttributes(attribute.String("status.stage", "online"))
	return models.StatusResult{Status: models.StatusOnline, Error: ""}
}

// probeWidget verifies the third-party service is reachable. This is a hard
// precondition: transport failures and non-200 responses are both offline.
func (ch *Checker) probeWidget(ctx context.Context, scriptURL string) *models.StatusResult {
	resp, err := ch.client.Get(ctx, scriptURL, remote.GetOptions{
		Timeout: ch.probeTimeout,
	})
	if err != nil {
		result := offline("Cannot connect to doboard.com: " + err.Error())
		return &result
	}
	if resp.StatusCode != 200 {
		result := offline(sprintfStatus(resp.StatusCode))
		return &result
	}
	return nil
}

// crossCheckHomepage fetches the site's own homepage and requires the script
// URL to be present. The probe itself failing (transport error or a mangled
// non-200 self-response) skips the check entirely.
func (ch *Checker) crossCheckHomepage(ctx context.Context, scriptURL string) *models.StatusResult {
	resp, err := ch.client.Get(ctx, ch.siteURL, remote.GetOptions{
		Timeout:       ch.homepageTimeout,
		MaxRedirects:  homepageRedirectCap,
		SkipTLSVerify: true,
		UserAgent:     remote.DesktopUserAgent,
	})
	if err != nil {
		if fault.IsKind(err, fault.KindTransport) {
			logger.Warn("homepage self-probe failed, skipping cross-check", "error", err.Error())
			return nil
		}
		result := offline("Cannot verify site homepage: " + err.Error())
		return &result
	}
	if resp.StatusCode != 200 {
		logger.Warn("homepage self-probe returned non-200, skipping cross-check", "status", resp.StatusCode)
		return nil
	}

	if containsScript(resp.Body, scriptURL, ch.bundleURL) {
		return nil
	}

	result := offline("Spotfix script not found on the site homepage.")
	return &result
}

// containsScript accepts either a verbatim occurrence of scriptURL in the
// body or a script tag whose src resolves to the same bundle URL and
// parameter set. The second form covers homepages that render the tag
// directly: HTML attribute encoding turns & into &amp; and defeats the
// verbatim match despite a working install.
func containsScript(body, scriptURL, bundleURL string) bool {
	if strings.Contains(body, scriptURL) {
		return true
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return false
	}

	want, err := url.Parse(scriptURL)
	if err != nil {
		return false
	}
	wantQuery := want.Query()

	found := false
	doc.Find("script[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if !strings.HasPrefix(src, bundleURL) {
			return true
		}
		parsed, err := url.Parse(src)
		if err != nil {
			return true
		}
		got := parsed.Query()
		for key := range wantQuery {
			if got.Get(key) != wantQuery.Get(key) {
				return true
			}
		}
		found = true
		return false
	})

	return found
}

func offline(message string) models.StatusResult {
	return models.StatusResult{Status: models.StatusOffline, Error: message}
}

func sprintfStatus(code int) string {
	return "Spotfix service returned error code: " + strconv.Itoa(code)
}
