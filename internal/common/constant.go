// Package common contains shared constants and sentinel errors used across
// credkeeper components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// session token on inbound requests.
const AccessTokenHeaderName = "access_token"

// UserAgentHeaderName and ForwardedForHeaderName are the metadata keys the
// transport reads the caller's client descriptor and origin from.
const (
	UserAgentHeaderName    = "user-agent"
	ForwardedForHeaderName = "x-forwarded-for"
)
