// Package telegram is a minimal Bot API client covering the calls leadcast
// needs: sendVideo, sendDocument and getMe.
//
// Failures are returned as *APIError with a Kind derived from the HTTP status
// and the API description so callers can decide whether a different upload
// method is worth trying.
package telegram
