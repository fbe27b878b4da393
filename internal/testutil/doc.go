// Package testutil contains helper builders and stand-ins used across tests
// to reduce boilerplate when constructing events and trackers, scripting
// resolver output and faking the action gateway. They are not intended for
// production usage.
package testutil
