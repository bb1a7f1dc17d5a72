/*
Package session implements preparation session management and persistence orchestration.

It serialises access to a session across goroutines (reference-counted local
locks) and, optionally, across replicas (a ports.DistributedLocker), while
delegating storage to a ports.SessionStore.
*/
package session
