// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package githubtools

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/swsphn/github-tools/internal/api"
)

// Clock provides current time. This is useful for testing.
type Clock interface {
	Now() time.Time
}

// systemClock is [Clock] backed by [time.Now].
type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// config is configuration shared by [Client] and [Issuer].
type config struct {
	baseURL   *url.URL          // REST API v3 base URL
	next      http.RoundTripper // next round tripper
	ua        string            // user agent
	owner     string            // installation owner
	installID uint64            // installation id
	logger    *slog.Logger      // logger
	clock     Clock             // clock used to mint JWT
	timeout   time.Duration     // timeout for a single issuance
}

// newConfig applies all options and populates defaults.
func newConfig(opts ...Option) (*config, error) {
	c := &config{}

	var err error
	for i := range opts {
		if opts[i] != nil {
			err = errors.Join(err, opts[i].apply(c))
		}
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOptions, err)
	}

	// If there is no existing round tripper, use DefaultTransport.
	if c.next == nil {
		c.next = http.DefaultTransport
	}

	// If there is not custom user agent specified, use default.
	if c.ua == "" {
		c.ua = api.UAHeaderValue
	}

	// If endpoint is not configured, use default endpoint.
	if c.baseURL == nil {
		c.baseURL, _ = url.Parse(api.DefaultEndpoint)
	}

	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if c.clock == nil {
		c.clock = systemClock{}
	}
	return c, nil
}

// Options takes a variadic slice of [Option] and returns
// a single [Option] which includes all the given options.
// This is useful for sharing presets. If conflicting options
// are specified, last one specified wins. As a special case,
// if no options are specified or all specified options are nil,
// this will return nil.
func Options(options ...Option) Option {
	nils := 0
	for i := range options {
		if options[i] == nil {
			nils++
		}
	}
	if len(options) == nils {
		return nil
	}

	return &funcOption{
		f: func(c *config) error {
			var err error
			for i := range options {
				if options[i] != nil {
					err = errors.Join(err, options[i].apply(c))
				}
			}
			return err
		},
	}
}

// Option is option to apply for [Client] and [Issuer].
type Option interface {
	apply(c *config) error
}

// funcOption wraps a function that is applied to the config
// during its initial configuration. It implements [Option]
// interface.
type funcOption struct {
	f func(*config) error
}

func (opt *funcOption) apply(c *config) error {
	return opt.f(c)
}

var (
	repoNameRegExp  = regexp.MustCompile("^(([.][a-z0-9_.-]+)|([a-z0-9_-]([a-z0-9_.-]+)?))$")
	userNameRegExp  = regexp.MustCompile("^([a-z0-9]([a-z0-9-]+)?)$")
	permissionRegEx = regexp.MustCompile("^[a-z]([a-z_]+[a-z])?[:=](" +
		api.PermissionLevelRead + "|" + api.PermissionLevelWrite + "|" + api.PermissionLevelAdmin + ")$")
)

// WithEndpoint configures REST API(v3) endpoint used for listing
// installations and creating installation access tokens.
//
// When not specified or empty, "https://api.github.com/" is used.
func WithEndpoint(endpoint string) Option {
	if endpoint == "" {
		return nil
	}
	return &funcOption{
		f: func(c *config) error {
			u, err := url.Parse(endpoint)
			if err != nil {
				return fmt.Errorf("invalid endpoint url: %w", err)
			}
			switch u.Scheme {
			case "http", "https":
			default:
				return fmt.Errorf("invalid url scheme : %s (%s)", u.Scheme, endpoint)
			}

			if u.Fragment != "" || u.RawQuery != "" {
				return fmt.Errorf("endpoint cannot have fragments or queries: %s", endpoint)
			}

			c.baseURL = u
			return nil
		},
	}
}

// WithRoundTripper configures next [http.RoundTripper] used for API requests.
//
// This can be used to further customize headers, add logging or retries.
func WithRoundTripper(next http.RoundTripper) Option {
	if next == nil {
		return nil
	}
	return &funcOption{
		f: func(c *config) error {
			c.next = next
			return nil
		},
	}
}

// WithUserAgent configures user agent header to use for API requests.
func WithUserAgent(ua string) Option {
	if strings.TrimSpace(ua) == "" {
		return nil
	}
	return &funcOption{
		f: func(c *config) error {
			c.ua = ua
			return nil
		},
	}
}

// WithOwner configures installation owner to use, when app is installed
// on more than one account.
func WithOwner(username string) Option {
	return &funcOption{
		f: func(c *config) error {
			username = strings.ToLower(username)
			if !userNameRegExp.MatchString(username) {
				return fmt.Errorf("invalid username: %s", username)
			}

			// If owner was already set, ensure they do not conflict.
			if c.owner != "" && c.owner != username {
				return fmt.Errorf("owner is already configured(%s): %s", c.owner, username)
			}

			c.owner = username
			return nil
		},
	}
}

// WithInstallationID configures installation id to use, when app is
// installed on more than one account. Installation id is still verified
// against installations available to the app.
func WithInstallationID(id uint64) Option {
	return &funcOption{
		f: func(c *config) error {
			if id == 0 {
				return fmt.Errorf("installation id cannot be zero")
			}

			// If installation id is already set, ensure they do not conflict.
			if c.installID != 0 && c.installID != id {
				return fmt.Errorf("installation id is already configured(%d): %d", c.installID, id)
			}

			c.installID = id
			return nil
		},
	}
}

// WithLogger configures logger. By default, nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	if logger == nil {
		return nil
	}
	return &funcOption{
		f: func(c *config) error {
			c.logger = logger
			return nil
		},
	}
}

// WithClock configures clock used for JWT iat and exp.
func WithClock(clock Clock) Option {
	if clock == nil {
		return nil
	}
	return &funcOption{
		f: func(c *config) error {
			c.clock = clock
			return nil
		},
	}
}

// WithTimeout configures timeout for a single issuance, covering signing
// and all API requests. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return &funcOption{
		f: func(c *config) error {
			if d < 0 {
				return fmt.Errorf("timeout cannot be negative: %s", d)
			}
			c.timeout = d
			return nil
		},
	}
}

// ParseRepositories validates repositories to which a token is scoped.
//
// Repositories can be specified as "repo" or "owner/repo". Repositories
// must belong to a single owner, which is returned along with repository
// names (without owner). Duplicates are removed and names are sorted.
func ParseRepositories(repos ...string) (string, []string, error) {
	var owner string
	names := make([]string, 0, len(repos))
	invalid := make([]string, 0, len(repos))
	for _, item := range repos {
		item = strings.ToLower(strings.TrimSpace(item))
		username, repo, ok := strings.Cut(item, "/")
		// Repository is in form username/repo.
		if ok {
			if !userNameRegExp.MatchString(username) {
				invalid = append(invalid, item)
				continue
			}

			// If owner is not set, set it first.
			if owner == "" {
				owner = username
			}

			// Repositories must be under a single installation.
			if username != owner {
				return "", nil, fmt.Errorf("%w: repositories from multiple owners specified: %v", ErrOptions, repos)
			}
			item = repo
		}

		// Ensure repository name is valid.
		if !repoNameRegExp.MatchString(item) {
			invalid = append(invalid, item)
		} else {
			names = append(names, item)
		}
	}

	if len(invalid) > 0 {
		return "", nil, fmt.Errorf("%w: invalid repositories specified: %v", ErrOptions, invalid)
	}

	// Sort before removing duplicates.
	slices.Sort(names)
	return owner, slices.Clip(slices.Compact(names)), nil
}

// ParsePermissions parses permission scopes.
//
// Permissions MUST be specified in <scope>:<access> or  <scope>=<access> format.
// Where scope is permission scope like "issues" and access can be one of
// "read", "write" or "admin".
//
// For example to request permissions to write issues and pull request can be specified as,
//
//	githubtools.ParsePermissions("issues:write", "pull_requests:write")
func ParsePermissions(permissions ...string) (map[string]string, error) {
	if len(permissions) == 0 {
		return nil, nil
	}

	m := make(map[string]string, len(permissions))
	invalid := make([]string, 0, len(permissions))
	for _, item := range permissions {
		item = strings.ToLower(strings.TrimSpace(item))
		if permissionRegEx.MatchString(item) {
			// Replace = with :
			item = strings.ReplaceAll(item, "=", ":")

			// Ignore error checks as regex already validates
			// that permissions are in format <scope>:<level> format.
			scope, level, _ := strings.Cut(item, ":")
			m[scope] = level
		} else {
			invalid = append(invalid, item)
		}
	}
	if len(invalid) != 0 {
		return nil, fmt.Errorf("%w: invalid permissions: %v", ErrOptions, invalid)
	}
	return m, nil
}
