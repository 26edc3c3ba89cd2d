package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// RequestIDHeaderName is the gRPC metadata key carrying the request id
// assigned by the server.
const RequestIDHeaderName = "x-request-id"

// AccessTokenExpiredMessage is the public message of an expired access
// token. Clients refresh their token when they see it.
const AccessTokenExpiredMessage = "access token has expired"
