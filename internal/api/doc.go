// Package api is the HTTP client for the log-analytics server.
//
// A Client logs in once, keeps the session token, and runs event and
// aggregate queries compiled by package queryurl:
//
//	c, _ := api.New(cfg)
//	if _, err := c.Connect(ctx); err != nil { ... }
//	resp, err := c.Events(ctx, query.NewEventQuery().Where(query.Eq("hostname", "web-1")))
//
// A 401 or 440 from the server clears the session and returns an *AuthError
// with Expired set. The client never retries; callers log in again.
//
// Ingestion goes to a separate port and needs no session.
package api
