package browser

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockedTypes are resources the cart pipeline never reads.
var blockedTypes = map[proto.NetworkResourceType]struct{}{
	proto.NetworkResourceTypeFont:  {},
	proto.NetworkResourceTypeMedia: {},
}

// trackerDomains are analytics and ad hosts commonly embedded in grocery
// storefronts.
var trackerDomains = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"facebook.net":          {},
	"criteo.com":            {},
	"criteo.net":            {},
	"hotjar.com":            {},
	"adsrvr.org":            {},
	"demdex.net":            {},
	"omtrdc.net":            {},
	"qualtrics.com":         {},
	"bing.com":              {},
	"pinterest.com":         {},
	"tiktok.com":            {},
}

// isTrackerHost reports whether host or any parent domain is listed.
func isTrackerHost(host string) bool {
	host = strings.ToLower(host)
	for {
		if _, ok := trackerDomains[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
}

// blockRequests intercepts every request on page and fails the ones in
// blockedTypes or to tracker hosts. The caller stops the returned router.
func blockRequests(page *rod.Page) *rod.HijackRouter {
	router := page.HijackRequests()
	err := router.Add("*", "", func(h *rod.Hijack) {
		if _, ok := blockedTypes[h.Request.Type()]; ok {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		if u, err := url.Parse(h.Request.URL().String()); err == nil && isTrackerHost(u.Hostname()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return nil
	}

	// Run blocks until Stop.
	go router.Run()
	return router
}
