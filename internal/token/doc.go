// Package token defines the OAuth token bundle held for a browser session and
// its persisted JSON record.
//
// The record format is
//
//	{"access_token":"…","refresh_token":"…","expiry_date":1718000000000,
//	 "scope":"https://www.googleapis.com/auth/gmail.readonly …","token_type":"Bearer"}
//
// with expiry_date in epoch milliseconds and scope space-delimited.
package token
