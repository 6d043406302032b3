// Package caldav is a minimal CalDAV client for keeping single event
// objects on a remote calendar in sync: discover the target calendar,
// put an object, delete an object. Both writes are idempotent.
package caldav

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client talks to a CalDAV server with HTTP basic auth. The target
// calendar is discovered on first use and cached for the lifetime of
// the client.
type Client struct {
	httpClient   *http.Client
	serverURL    *url.URL
	username     string
	password     string
	homePath     string
	calendarName string

	calendarURL *url.URL // resolved by discovery, nil until then
	log         zerolog.Logger
}

// NewClient creates a CalDAV client.
//
// serverURL is the server origin (e.g. "https://caldav.example.com").
// homePath is the calendar home set; when empty it defaults to the
// iCloud-style "/<username>/calendars/". calendarName selects the
// calendar by display name; when no calendar matches, the first one
// found is used.
func NewClient(serverURL, username, password, homePath, calendarName string, logger zerolog.Logger) (*Client, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("CalDAV server URL is not set")
	}
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid CalDAV server URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("CalDAV server URL must be absolute: %q", serverURL)
	}

	if homePath == "" {
		homePath = fmt.Sprintf("/%s/calendars/", username)
	}

	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		serverURL:    base,
		username:     username,
		password:     password,
		homePath:     homePath,
		calendarName: calendarName,
		log:          logger.With().Str("component", "caldav").Logger(),
	}, nil
}

func (c *Client) do(ctx context.Context, method, target string, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.httpClient.Do(req)
}

// propfindBody asks for the display name and resource type of each
// member of the calendar home set.
const propfindBody = `<?xml version="1.0" encoding="utf-8" ?>
<d:propfind xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop>
    <d:displayname/>
    <d:resourcetype/>
  </d:prop>
</d:propfind>`

type multistatus struct {
	XMLName   xml.Name `xml:"multistatus"`
	Responses []struct {
		Href      string `xml:"href"`
		Propstats []struct {
			Prop struct {
				DisplayName  string `xml:"displayname"`
				ResourceType struct {
					Calendar *struct{} `xml:"calendar"`
				} `xml:"resourcetype"`
			} `xml:"prop"`
		} `xml:"propstat"`
	} `xml:"response"`
}

// ensureCalendar discovers the target calendar and caches its
// absolute URL. A relative href in the server's response is resolved
// against the server origin before use.
func (c *Client) ensureCalendar(ctx context.Context) (*url.URL, error) {
	if c.calendarURL != nil {
		return c.calendarURL, nil
	}

	homeURL := c.serverURL.ResolveReference(&url.URL{Path: c.homePath})
	req, err := http.NewRequestWithContext(ctx, "PROPFIND", homeURL.String(), strings.NewReader(propfindBody))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	req.Header.Set("Depth", "1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("calendar discovery rejected: HTTP %d (check credentials)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusMultiStatus && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to list calendars: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read discovery response: %w", err)
	}

	var ms multistatus
	if err := xml.Unmarshal(body, &ms); err != nil {
		return nil, fmt.Errorf("failed to parse discovery response: %w", err)
	}

	var first, match *url.URL
	for _, r := range ms.Responses {
		href := strings.TrimSpace(r.Href)
		if href == "" {
			continue
		}
		for _, ps := range r.Propstats {
			if ps.Prop.ResourceType.Calendar == nil {
				continue
			}
			u, err := c.resolve(href)
			if err != nil {
				c.log.Warn().Str("href", href).Err(err).Msg("skipping unparseable calendar href")
				continue
			}
			if first == nil {
				first = u
			}
			if strings.EqualFold(ps.Prop.DisplayName, c.calendarName) && match == nil {
				match = u
			}
		}
	}

	selected := match
	if selected == nil {
		if first == nil {
			return nil, fmt.Errorf("no calendars found under %s", c.homePath)
		}
		c.log.Warn().Str("calendar", c.calendarName).Str("fallback", first.Path).
			Msg("no calendar with the configured name, using the first one")
		selected = first
	}

	c.calendarURL = selected
	c.log.Debug().Str("calendar_url", selected.String()).Msg("calendar discovered")
	return selected, nil
}

// resolve turns an href from the server (absolute URL or absolute
// path) into an absolute URL on the known server origin.
func (c *Client) resolve(href string) (*url.URL, error) {
	u, err := url.Parse(href)
	if err != nil {
		return nil, err
	}
	return c.serverURL.ResolveReference(u), nil
}

// objectURL addresses the calendar object for a uid.
func objectURL(calendarURL *url.URL, uid string) string {
	return strings.TrimSuffix(calendarURL.String(), "/") + "/" + uid + ".ics"
}

// UpsertEvent writes the serialized document to the object addressed
// by uid, creating or replacing it in a single PUT. There is no
// existence check first: the unconditional put is what keeps
// concurrent or out-of-order deliveries converging on the last write.
func (c *Client) UpsertEvent(ctx context.Context, uid, document string) error {
	calURL, err := c.ensureCalendar(ctx)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPut, objectURL(calURL, uid), "text/calendar; charset=utf-8", strings.NewReader(document))
	if err != nil {
		return fmt.Errorf("failed to put calendar object %s: %w", uid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to put calendar object %s: HTTP %d", uid, resp.StatusCode)
	}

	// The version token is informational only.
	if etag := resp.Header.Get("ETag"); etag != "" {
		c.log.Debug().Str("uid", uid).Str("etag", etag).Msg("calendar object written")
	}
	return nil
}

// DeleteEvent removes the object addressed by uid. A missing object is
// success: the desired end state, absence, already holds.
func (c *Client) DeleteEvent(ctx context.Context, uid string) error {
	calURL, err := c.ensureCalendar(ctx)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodDelete, objectURL(calURL, uid), "", nil)
	if err != nil {
		return fmt.Errorf("failed to delete calendar object %s: %w", uid, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		c.log.Debug().Str("uid", uid).Msg("calendar object already absent")
		return nil
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	default:
		return fmt.Errorf("failed to delete calendar object %s: HTTP %d", uid, resp.StatusCode)
	}
}
