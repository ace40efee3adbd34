package detector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultPagesAPI is the Cloudflare API endpoint for Pages deployments.
const DefaultPagesAPI = "https://api.cloudflare.com/client/v4"

// PagesDeployments reports the id of the newest successful production
// deployment of a Pages project.
type PagesDeployments struct {
	BaseURL   string
	AccountID string
	Project   string
	Token     string
	Client    *http.Client
	Retry     RetryConfig
}

type pagesDeployment struct {
	ID          string `json:"id"`
	Environment string `json:"environment"`
	LatestStage struct {
		Status string `json:"status"`
	} `json:"latest_stage"`
}

type pagesDeploymentsResponse struct {
	Success bool              `json:"success"`
	Result  []pagesDeployment `json:"result"`
}

// NewPagesDeployments creates a deployments detector.
func NewPagesDeployments(accountID, project, token string) (*PagesDeployments, error) {
	if accountID == "" || project == "" {
		return nil, fmt.Errorf("pages detector needs account id and project")
	}
	return &PagesDeployments{
		BaseURL:   DefaultPagesAPI,
		AccountID: accountID,
		Project:   project,
		Token:     token,
		Retry:     DefaultRetryConfig(),
	}, nil
}

// LatestChangeID returns the newest successful production deployment id, or ""
// when there is none. The API lists deployments newest first.
func (p *PagesDeployments) LatestChangeID(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/pages/projects/%s/deployments",
		strings.TrimRight(p.BaseURL, "/"), url.PathEscape(p.AccountID), url.PathEscape(p.Project))

	auth := ""
	if p.Token != "" {
		auth = "Bearer " + p.Token
	}

	var body pagesDeploymentsResponse
	err := retryWithBackoff(ctx, p.Retry, func() error {
		return getJSON(ctx, newHTTPClient(p.Client), endpoint, auth, &body)
	})
	if err != nil {
		return "", err
	}
	if !body.Success {
		return "", fmt.Errorf("pages deployments %s: api reported failure", p.Project)
	}

	for _, d := range body.Result {
		if d.Environment != "" && d.Environment != "production" {
			continue
		}
		if d.LatestStage.Status != "" && d.LatestStage.Status != "success" {
			continue
		}
		return d.ID, nil
	}
	return "", nil
}
