package utils

import "net/http"

// HeaderUserID carries the caller's identity. The gateway in front of
// this service authenticates and sets it; the sync layer trusts it.
const HeaderUserID = "X-User-ID"

func GetUserID(r *http.Request) string {
	return r.Header.Get(HeaderUserID)
}
