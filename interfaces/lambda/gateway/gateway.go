// Package gateway prepares API Gateway HTTP API events for the chi router.
//
// API Gateway validates the bearer token before the function runs, so the
// caller identity is taken from the authorizer context and handed to the router
// in the X-User-ID header. Any copy of that header sent by the client is dropped.
package gateway

import (
	"fmt"
	"net/http"
	"strings"

	"recipes-backend/interfaces/http/rest/middleware"

	"github.com/aws/aws-lambda-go/events"
)

// Claims checked for the caller identity, in order
var identityClaims = []string{"sub", "cognito:username", "username"}

// CallerID returns the authenticated caller of req, or "" when the request
// carries no authorizer identity
func CallerID(req events.APIGatewayV2HTTPRequest) string {
	authorizer := req.RequestContext.Authorizer
	if authorizer == nil {
		return ""
	}

	if authorizer.JWT != nil {
		for _, claim := range identityClaims {
			if v := strings.TrimSpace(authorizer.JWT.Claims[claim]); v != "" {
				return v
			}
		}
	}

	for _, claim := range append([]string{"userId"}, identityClaims...) {
		if v, ok := authorizer.Lambda[claim]; ok && v != nil {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}

	if authorizer.IAM != nil && authorizer.IAM.UserID != "" {
		return authorizer.IAM.UserID
	}
	return ""
}

// PrepareRequest strips client supplied identity headers and sets the one
// derived from the authorizer context
func PrepareRequest(req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPRequest {
	headers := make(map[string]string, len(req.Headers)+1)
	for name, value := range req.Headers {
		if strings.EqualFold(name, middleware.UserIDHeader) {
			continue
		}
		headers[name] = value
	}

	if caller := CallerID(req); caller != "" {
		headers[http.CanonicalHeaderKey(middleware.UserIDHeader)] = caller
	}
	req.Headers = headers
	return req
}
