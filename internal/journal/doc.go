// Package journal keeps a local SQLite record of the requests the client
// sends: when, which operation, the URL, the status code, and how long it took.
//
// The journal is write-mostly diagnostics. It stores no response bodies and
// is never consulted to answer a query.
package journal
