// Package directory looks up user profiles (contact email, ledger address)
// in the external user service. Lookups are best effort: any failure is
// reported as "absent" and callers fall back to placeholder profiles.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
	"github.com/R3E-Network/rental_settlement/internal/httputil"
	"github.com/R3E-Network/rental_settlement/pkg/logger"
)

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 2 * time.Second

// Directory resolves a user id to a profile.
type Directory interface {
	Lookup(ctx context.Context, userID int64) (settlement.Profile, bool)
}

// LookupFunc adapts a function to the Directory interface.
type LookupFunc func(ctx context.Context, userID int64) (settlement.Profile, bool)

func (f LookupFunc) Lookup(ctx context.Context, userID int64) (settlement.Profile, bool) {
	return f(ctx, userID)
}

// Absent is a directory that knows nobody.
var Absent Directory = LookupFunc(func(context.Context, int64) (settlement.Profile, bool) {
	return settlement.Profile{}, false
})

// Resolve returns the directory profile for userID, or the placeholder
// profile for role when the directory has nothing.
func Resolve(ctx context.Context, d Directory, userID int64, role string) settlement.Profile {
	if d != nil {
		if p, ok := d.Lookup(ctx, userID); ok {
			return p
		}
	}
	return settlement.PlaceholderProfile(userID, role)
}

// ProfilePath is the user service endpoint for a profile.
func ProfilePath(userID int64) string {
	return fmt.Sprintf("/api/users/profile/%d", userID)
}

// HTTPDirectory queries the user service over REST.
type HTTPDirectory struct {
	client  *httputil.ServiceClient
	timeout time.Duration
	log     *logger.Logger
}

// NewHTTPDirectory creates a directory backed by client.
func NewHTTPDirectory(client *httputil.ServiceClient, timeout time.Duration, log *logger.Logger) *HTTPDirectory {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewDefault("directory")
	}
	return &HTTPDirectory{client: client, timeout: timeout, log: log}
}

// Lookup fetches the profile. Not found, transport errors, timeouts and
// unreadable responses all report absent.
func (d *HTTPDirectory) Lookup(ctx context.Context, userID int64) (settlement.Profile, bool) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	p, err := d.fetch(ctx, userID)
	if err != nil {
		entry := d.log.WithField("user_id", userID)
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			entry.Debug("profile not found")
		} else {
			entry.WithError(err).Warn("profile lookup failed")
		}
		return settlement.Profile{}, false
	}
	return p, true
}

func (d *HTTPDirectory) fetch(ctx context.Context, userID int64) (settlement.Profile, error) {
	resp, err := d.client.Get(ctx, ProfilePath(userID))
	if err != nil {
		return settlement.Profile{}, err
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return settlement.Profile{}, err
	}

	if !gjson.ValidBytes(body) {
		return settlement.Profile{}, errors.New("profile response is not JSON")
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsObject() {
		return settlement.Profile{}, errors.New("profile response has no data")
	}

	p := settlement.Profile{
		ID:            userID,
		Email:         data.Get("email").String(),
		WalletAddress: data.Get("walletAddress").String(),
	}
	if id := data.Get("id"); id.Exists() && id.Int() != userID {
		d.log.WithFields(logrus.Fields{"user_id": userID, "returned_id": id.Int()}).Warn("profile id mismatch")
	}
	return p, nil
}
