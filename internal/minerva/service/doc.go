// Package service implements the customer registry on top of the store, the
// connection pool and the list streams.
//
// Create, Get and Delete lease one connection for a single statement. List
// starts a fetch loop in the background and returns its session right away;
// running sessions are tracked until their loop exits.
package service
