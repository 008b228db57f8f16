// Package version reports the build version and checks GitHub for newer
// releases.
package version

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/nulzo/atlas-api/internal/httpclient"
)

// Version is set at build time with -ldflags "-X .../internal/version.Version=v1.2.3".
var Version = "v0.0.0-dev"

const defaultAPI = "https://api.github.com"

type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

type Update struct {
	Current string
	Latest  string
	URL     string
}

type Checker struct {
	api    string
	client httpclient.HTTPClient
}

func NewChecker() *Checker {
	return &Checker{api: defaultAPI, client: httpclient.New(2 * time.Second)}
}

// Check returns a non-nil Update when repo ("owner/name") has a release newer
// than current. Unparseable versions are errors, not updates.
func (c *Checker) Check(ctx context.Context, repo, current string) (*Update, error) {
	cur, err := goversion.NewVersion(current)
	if err != nil {
		return nil, fmt.Errorf("current version %q: %w", current, err)
	}

	var release Release
	url := fmt.Sprintf("%s/repos/%s/releases/latest", c.api, repo)
	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if err := httpclient.SendRequest(ctx, c.client, http.MethodGet, url, headers, nil, &release); err != nil {
		return nil, fmt.Errorf("fetch latest release: %w", err)
	}

	latest, err := goversion.NewVersion(release.TagName)
	if err != nil {
		return nil, fmt.Errorf("latest version %q: %w", release.TagName, err)
	}

	if !cur.LessThan(latest) {
		return nil, nil
	}
	return &Update{Current: current, Latest: release.TagName, URL: release.HTMLURL}, nil
}
