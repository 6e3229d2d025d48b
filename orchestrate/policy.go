package orchestrate

import (
	"net/url"
	"strings"

	"github.com/webpeel/webpeel/models"
)

// domainPolicy is the static hostname→tier override table. It is
// consulted before any dynamic recommendation and wins over force flags.
// Hostnames match by suffix, so an entry covers its subdomains.
//
// Sustained anti-detection usage for a domain (visible in result methods)
// is the signal to add an entry here.
var domainPolicy = map[string]string{
	"linkedin.com":     models.MethodAntiDetection,
	"glassdoor.com":    models.MethodAntiDetection,
	"indeed.com":       models.MethodAntiDetection,
	"facebook.com":     models.MethodAntiDetection,
	"instagram.com":    models.MethodAntiDetection,
	"twitter.com":      models.MethodRendered,
	"x.com":            models.MethodRendered,
	"reddit.com":       models.MethodRendered,
	"medium.com":       models.MethodRendered,
	"quora.com":        models.MethodRendered,
	"zillow.com":       models.MethodAntiDetection,
	"ticketmaster.com": models.MethodAntiDetection,
}

// policyTier returns the static override for a URL's hostname, or ""
// when no entry matches.
func policyTier(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	for host != "" {
		if tier, ok := domainPolicy[host]; ok {
			return tier
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			break
		}
		host = host[idx+1:]
	}
	return ""
}
