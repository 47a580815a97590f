/*
Package session implements run access control and persistence orchestration.

It serializes operations on a single run (one node at a time) across goroutines
and, with a distributed locker, across replicas, while independent runs proceed
concurrently.
*/
package session
